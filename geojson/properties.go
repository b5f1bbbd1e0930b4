package geojson

import (
	"github.com/buger/jsonparser"
)

type Property struct {
	Key   string
	Value Value
}

// Properties keeps feature properties in the order they appear in the source
// document.
type Properties []Property

// Get returns value of the named property. When key is repeated in the source
// object the last occurrence wins, same as for regular JSON decoders.
func (p Properties) Get(key string) (Value, bool) {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i].Key == key {
			return p[i].Value, true
		}
	}
	return Value{Kind: jsonparser.NotExist}, false
}

func (p Properties) Keys() []string {
	keys := make([]string, 0, len(p))
	for _, prop := range p {
		keys = append(keys, prop.Key)
	}
	return keys
}

func parseProperties(data []byte) (Properties, error) {
	var props Properties
	err := jsonparser.ObjectEach(data, func(key, value []byte, kind jsonparser.ValueType, _ int) error {
		props = append(props, Property{Key: string(key), Value: NewValue(kind, value)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return props, nil
}
