package maputil

import (
	"github.com/pkg/errors"
)

// CastKeysToStrings converts a yaml.v2 style map with interface{} keys
// into a map keyed by strings, recursing into nested maps and slices so
// the result can be fed to json-schema validation and mapstructure.
func CastKeysToStrings(m map[interface{}]interface{}) (map[string]interface{}, error) {
	result := map[string]interface{}{}
	for k, v := range m {
		str, ok := k.(string)
		if !ok {
			return nil, errors.Errorf("unexpected type of key: value=%v, type=%T", k, k)
		}
		casted, err := castValue(v)
		if err != nil {
			return nil, err
		}
		result[str] = casted
	}
	return result, nil
}

func castValue(v interface{}) (interface{}, error) {
	switch typed := v.(type) {
	case map[interface{}]interface{}:
		return CastKeysToStrings(typed)
	case []interface{}:
		result := make([]interface{}, len(typed))
		for i, item := range typed {
			casted, err := castValue(item)
			if err != nil {
				return nil, err
			}
			result[i] = casted
		}
		return result, nil
	default:
		return v, nil
	}
}
