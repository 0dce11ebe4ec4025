package adapter

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/h2hsecure/moodlews/internal/domain"
)

// EncodeForm flattens params into form fields the way PHP's
// http_build_query does: nested keys become users[0][email], booleans become
// 1 and 0, null members are dropped.
func EncodeForm(params domain.Value) (url.Values, error) {
	form := url.Values{}

	switch params.Kind() {
	case domain.KindNull:
		return form, nil
	case domain.KindObject, domain.KindArray:
		appendField(form, "", params)
		return form, nil
	default:
		return nil, fmt.Errorf("params must be an object, got %s", params.Kind())
	}
}

func appendField(form url.Values, key string, v domain.Value) {
	switch v.Kind() {
	case domain.KindNull:
	case domain.KindObject:
		for _, m := range v.Members() {
			appendField(form, fieldKey(key, m.Key), m.Value)
		}
	case domain.KindArray:
		for i, item := range v.Items() {
			appendField(form, fieldKey(key, strconv.Itoa(i)), item)
		}
	case domain.KindBool:
		if v.AsBool() {
			form.Add(key, "1")
		} else {
			form.Add(key, "0")
		}
	default:
		form.Add(key, v.Text())
	}
}

func fieldKey(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "[" + name + "]"
}
