package main

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hengadev/encattr"
)

// ModelFile is the YAML document describing the encrypted models of an application.
//
//	models:
//	  - name: User
//	    table: users
//	    columns: [name, role]
//	    attributes:
//	      - name: email
//	        mode: single_iv_and_salt
//	        key_ref: users/email
//	      - name: ssn
//	        key_env: USERS_SSN_KEY
type ModelFile struct {
	Models []ModelDefinition `yaml:"models"`
}

// ModelDefinition describes one model and its encrypted attributes.
type ModelDefinition struct {
	Name       string `yaml:"name"`
	Table      string `yaml:"table"`
	PrimaryKey string `yaml:"primary_key"`
	Prefix     string `yaml:"prefix"`
	Suffix     string `yaml:"suffix"`
	Mode       string `yaml:"mode"`
	// Columns lists plain columns created by schema migrate.
	Columns    []string              `yaml:"columns"`
	Attributes []AttributeDefinition `yaml:"attributes"`
}

// AttributeDefinition describes one encrypted attribute. Marshal is "json" or
// "yaml" for non-string values. Exactly one of KeyRef
// and KeyEnv is required. KeyEnv names a variable holding a base64 key, read
// when the key is first needed. Such a key is per-record as far as the model
// can tell, so KeyEnv attributes cannot be queried with Where or dynamic
// finders; use KeyRef for searchable attributes.
type AttributeDefinition struct {
	Name       string `yaml:"name"`
	Attribute  string `yaml:"attribute"`
	Prefix     string `yaml:"prefix"`
	Suffix     string `yaml:"suffix"`
	Mode       string `yaml:"mode"`
	KeyRef     string `yaml:"key_ref"`
	KeyEnv     string `yaml:"key_env"`
	Encode     *bool  `yaml:"encode"`
	Marshal    string `yaml:"marshal"`
	AllowEmpty bool   `yaml:"allow_empty_value"`
}

// LoadModelFile reads model definitions from a YAML file.
func LoadModelFile(path string) (*ModelFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}

	file := &ModelFile{}
	if err := yaml.Unmarshal(data, file); err != nil {
		return nil, fmt.Errorf("failed to parse model file: %w", err)
	}
	if len(file.Models) == 0 {
		return nil, fmt.Errorf("%w: no models defined in %s", encattr.ErrInvalidConfiguration, path)
	}
	return file, nil
}

// Find returns the definition named name.
func (f *ModelFile) Find(name string) (ModelDefinition, bool) {
	for _, def := range f.Models {
		if def.Name == name {
			return def, true
		}
	}
	return ModelDefinition{}, false
}

// Build turns every definition into a Model.
func (f *ModelFile) Build(logger *slog.Logger) ([]*encattr.Model, error) {
	models := make([]*encattr.Model, 0, len(f.Models))
	for _, def := range f.Models {
		m, err := def.Build(logger)
		if err != nil {
			return nil, err
		}
		models = append(models, m)
	}
	return models, nil
}

// Build creates the Model described by def.
func (def ModelDefinition) Build(logger *slog.Logger) (*encattr.Model, error) {
	opts := []encattr.ModelOption{encattr.WithLogger(logger)}
	if def.PrimaryKey != "" {
		opts = append(opts, encattr.WithPrimaryKey(def.PrimaryKey))
	}
	if def.Prefix != "" {
		opts = append(opts, encattr.WithDefaultPrefix(def.Prefix))
	}
	if def.Suffix != "" {
		opts = append(opts, encattr.WithDefaultSuffix(def.Suffix))
	}
	if def.Mode != "" {
		mode, err := encattr.ParseMode(def.Mode)
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", def.Name, err)
		}
		opts = append(opts, encattr.WithDefaultMode(mode))
	}

	m, err := encattr.NewModel(def.Name, def.Table, opts...)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", def.Name, err)
	}

	for _, attr := range def.Attributes {
		attrOpts, err := attr.options()
		if err != nil {
			return nil, fmt.Errorf("model %s: attribute %s: %w", def.Name, attr.Name, err)
		}
		if err := m.AttrEncrypted(attr.Name, attrOpts...); err != nil {
			return nil, fmt.Errorf("model %s: %w", def.Name, err)
		}
	}
	return m, nil
}

func (a AttributeDefinition) options() ([]encattr.AttributeOption, error) {
	var opts []encattr.AttributeOption

	switch {
	case a.KeyRef != "" && a.KeyEnv != "":
		return nil, fmt.Errorf("%w: key_ref and key_env are exclusive", encattr.ErrInvalidConfiguration)
	case a.KeyRef != "":
		opts = append(opts, encattr.WithKeyRef(a.KeyRef))
	case a.KeyEnv != "":
		opts = append(opts, encattr.WithKeyFunc(envKey(a.KeyEnv)))
	default:
		return nil, fmt.Errorf("%w: key_ref or key_env is required", encattr.ErrInvalidConfiguration)
	}

	if a.Mode != "" {
		mode, err := encattr.ParseMode(a.Mode)
		if err != nil {
			return nil, err
		}
		opts = append(opts, encattr.WithMode(mode))
	}
	if a.Attribute != "" {
		opts = append(opts, encattr.WithAttribute(a.Attribute))
	}
	if a.Prefix != "" {
		opts = append(opts, encattr.WithPrefix(a.Prefix))
	}
	if a.Suffix != "" {
		opts = append(opts, encattr.WithSuffix(a.Suffix))
	}
	if a.Encode != nil {
		opts = append(opts, encattr.WithEncode(*a.Encode))
	}
	switch a.Marshal {
	case "":
	case "json":
		opts = append(opts, encattr.WithMarshal(encattr.JSONSerializer{}))
	case "yaml":
		opts = append(opts, encattr.WithMarshal(encattr.YAMLSerializer{}))
	default:
		return nil, fmt.Errorf("%w: unknown marshal format %q", encattr.ErrInvalidConfiguration, a.Marshal)
	}
	if a.AllowEmpty {
		opts = append(opts, encattr.WithAllowEmptyValue())
	}
	return opts, nil
}

// envKey reads a base64 key from the environment variable name.
func envKey(name string) encattr.KeyFunc {
	return func(r *encattr.Record) ([]byte, error) {
		raw := os.Getenv(name)
		if raw == "" {
			return nil, fmt.Errorf("environment variable %s is not set", name)
		}
		key, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("%s is not valid base64: %w", name, err)
		}
		return key, nil
	}
}
