package taskmk

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/juju/errors"
	"github.com/kr/pretty"
	"github.com/mitchellh/mapstructure"
	log "github.com/sirupsen/logrus"
	"github.com/xeipuuv/gojsonschema"
	yaml "gopkg.in/yaml.v2"

	"github.com/taskmk/taskmk/pkg/util/maputil"
)

func ReadConfigFromString(data string) (*ConfigDef, error) {
	return ReadConfigFromBytes([]byte(data), "yaml")
}

func ReadConfigFromBytes(data []byte, format string) (*ConfigDef, error) {
	raw, err := rawDocument(data, format)
	if err != nil {
		return nil, errors.Trace(err)
	}

	if err := validateAgainstSchema(raw); err != nil {
		return nil, errors.Trace(err)
	}

	c := NewDefaultConfigDef()
	switch format {
	case "yaml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, errors.Annotatef(err, "yaml.Unmarshal failed")
		}
	case "toml":
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           c,
			WeaklyTypedInput: true,
		})
		if err != nil {
			return nil, errors.Trace(err)
		}
		if err := decoder.Decode(raw); err != nil {
			return nil, errors.Annotatef(err, "failed decoding toml document")
		}
	default:
		return nil, fmt.Errorf("unsupported task file format: %s", format)
	}

	if err := c.Validate(); err != nil {
		return nil, errors.Trace(err)
	}

	log.Debugf("loaded task config: %# v", pretty.Formatter(c))

	return c, nil
}

func ReadConfigFromFile(path string) (*ConfigDef, error) {
	log.Debugf("loading %s", path)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s does not exist", path)
	}

	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Annotatef(err, "error while loading %s", path)
	}

	format := "yaml"
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		format = "toml"
	}

	c, err := ReadConfigFromBytes(data, format)
	if err != nil {
		return nil, errors.Annotatef(err, "error while loading %s", path)
	}

	return c, nil
}

// rawDocument parses the task file into a plain string-keyed map so that
// it can be schema-validated before any typed decoding happens.
func rawDocument(data []byte, format string) (map[string]interface{}, error) {
	switch format {
	case "yaml":
		doc := map[interface{}]interface{}{}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, errors.Annotatef(err, "yaml.Unmarshal failed")
		}
		return maputil.CastKeysToStrings(doc)
	case "toml":
		doc := map[string]interface{}{}
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, errors.Annotatef(err, "toml.Unmarshal failed")
		}
		return doc, nil
	default:
		return nil, fmt.Errorf("unsupported task file format: %s", format)
	}
}

func validateAgainstSchema(raw map[string]interface{}) error {
	schemaLoader := gojsonschema.NewGoLoader(configSchema())
	schema, err := gojsonschema.NewSchema(schemaLoader)
	if err != nil {
		return errors.Trace(err)
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(raw))
	if err != nil {
		return errors.Trace(err)
	}

	if !result.Valid() {
		log.Errorf("the task file is not valid:")
		for _, resultError := range result.Errors() {
			log.Errorf("- %s", resultError)
		}
		return fmt.Errorf("the task file did not pass schema validation: %s", result.Errors()[0])
	}

	return nil
}

func configSchema() map[string]interface{} {
	stringArray := map[string]interface{}{
		"type":  "array",
		"items": map[string]interface{}{"type": "string"},
	}
	stringMap := map[string]interface{}{
		"type":                 "object",
		"additionalProperties": map[string]interface{}{"type": "string"},
	}
	taskSchema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"description":  map[string]interface{}{"type": "string"},
			"dependencies": stringArray,
			"alias": map[string]interface{}{
				"anyOf": []interface{}{
					map[string]interface{}{"type": "string"},
					stringArray,
				},
			},
			"parallel":     map[string]interface{}{"type": "boolean"},
			"command":      map[string]interface{}{"type": "string"},
			"args":         stringArray,
			"script":       map[string]interface{}{"type": "string"},
			"toolchain":    map[string]interface{}{"type": "string"},
			"install_tool": map[string]interface{}{"type": "string"},
			"env":          stringMap,
		},
		"additionalProperties": false,
	}
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"tasks": map[string]interface{}{
				"type":                 "object",
				"additionalProperties": taskSchema,
			},
			"toolchains": map[string]interface{}{
				"type":                 "object",
				"additionalProperties": stringMap,
			},
			"tool_sources": stringMap,
			"settings": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"jobs":          map[string]interface{}{"type": "integer"},
					"allow_install": map[string]interface{}{"type": "boolean"},
				},
				"additionalProperties": false,
			},
		},
		"required":             []interface{}{"tasks"},
		"additionalProperties": false,
	}
}
