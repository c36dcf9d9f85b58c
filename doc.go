// Package encattr encrypts individual attributes of database records.
//
// Each encrypted attribute is backed by a shadow column ("encrypted_" + name by
// default) plus, depending on the mode, an IV column and a salt column. Values
// are encrypted when assigned and decrypted lazily on first read; the plaintext
// is cached on the record until it is reloaded.
//
// # Modes
//
//   - PerAttributeIV: AES-256-GCM with a random IV stored in "<column>_iv".
//     Needs a 32 byte key.
//   - PerAttributeIVAndSalt: as above, with the key stretched by PBKDF2 using a
//     random salt stored in "<column>_salt". Any key length works.
//   - SingleIVAndSalt: deterministic encryption. Equal plaintexts give equal
//     ciphertexts, so the shadow column can be queried by equality.
//
// # Quick Start
//
//	db, err := encattr.OpenDB("file:app.db")
//	store, err := encattr.NewStore(db)
//
//	users, err := encattr.NewModel("User", "users")
//	err = users.AttrEncrypted("ssn", encattr.WithKey(ssnKey))
//	err = users.AttrEncrypted("email",
//		encattr.WithMode(encattr.SingleIVAndSalt),
//		encattr.WithKey(emailKey))
//	err = store.Register(ctx, users)
//
//	user := store.New(users)
//	err = user.AssignAttributes(map[string]any{"name": "Alice", "ssn": "123-45-6789"})
//	err = user.Save(ctx)
//
//	found, err := store.Dispatch(ctx, users, "find_by_email", "alice@example.com")
//
// # Keys
//
// A key is static (WithKey), derived from the record (WithKeyFunc) or named
// (WithKeyRef). Named keys are resolved once by Store.Register through a
// KeyResolver: StaticKeyResolver, SecretKeyResolver over a
// SecretManagementService, or a Keyring of data keys wrapped by a
// KeyManagementService. Providers for AWS KMS, AWS Secrets Manager and
// HashiCorp Vault live under providers/.
//
// # Attributes
//
// Record.Attributes never contains plaintext of encrypted attributes, only
// their shadow columns. AssignAttributes assigns plain attributes before
// encrypted ones so key functions and conditions can depend on them.
//
// # Dynamic finders
//
// Store.Dispatch accepts find_by_*, find_all_by_*, scoped_by_* and
// scoped_all_by_* names. Encrypted attributes in SingleIVAndSalt mode with a
// static key are rewritten to their shadow column; this use is deprecated and
// logged as a warning.
package encattr
