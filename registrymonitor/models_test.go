package registrymonitor

import "testing"

func TestTableNames(t *testing.T) {
	cases := map[string]interface{ TableName() string }{
		"operators":             Operator{},
		"signed_registrations":  SignedRegistration{},
		"protocols":             Protocol{},
		"status":                Status{},
	}
	for want, model := range cases {
		if got := model.TableName(); got != want {
			t.Errorf("TableName() = %q, want %q", got, want)
		}
	}
}
