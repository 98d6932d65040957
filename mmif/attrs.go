package mmif

import (
	"time"
)

// Setter builders for the attribute tables. Each accepts the typed Go value
// as well as the decoded JSON form.

func stringAttr(key string, dst *string, required bool) attr {
	return attr{
		key:      key,
		required: required,
		get:      func() interface{} { return *dst },
		set: func(v interface{}) error {
			switch x := v.(type) {
			case string:
				*dst = x
			case nil:
				*dst = ""
			default:
				return validationErrorf("%s must be a string, got %s", wireKey(key), jsonKind(v))
			}
			return nil
		},
	}
}

func timeAttr(key string, dst *time.Time) attr {
	return attr{
		key:       key,
		timestamp: true,
		get:       func() interface{} { return *dst },
		set: func(v interface{}) error {
			switch x := v.(type) {
			case time.Time:
				*dst = x
			case string:
				t, err := parseTime(x)
				if err != nil {
					return validationErrorf("%s is not an ISO-8601 timestamp: %q", wireKey(key), x)
				}
				*dst = t
			case nil:
				*dst = time.Time{}
			default:
				return validationErrorf("%s must be a timestamp string, got %s", wireKey(key), jsonKind(v))
			}
			return nil
		},
	}
}

// nestedAttr binds an attribute whose value is itself an entity. fresh
// builds an empty instance used when the value arrives as a JSON object.
func nestedAttr[T entity](key string, dst *T, fresh func() T, required bool) attr {
	return attr{
		key:      key,
		required: required,
		get:      func() interface{} { return *dst },
		set: func(v interface{}) error {
			switch x := v.(type) {
			case T:
				*dst = x
				return nil
			case map[string]interface{}:
				n := fresh()
				if err := decode(n, fromAtSign(x).(map[string]interface{})); err != nil {
					return err
				}
				*dst = n
				return nil
			}
			return validationErrorf("%s must be an object, got %s", wireKey(key), jsonKind(v))
		},
	}
}
