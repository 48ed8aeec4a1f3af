package models

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestValidateEnvironmentNameExamples(t *testing.T) {
	tests := []struct {
		name    string
		wantErr error
	}{
		{"prod-1", nil},
		{"prod_db", nil},
		{"a", nil},
		{strings.Repeat("a", 15), nil},
		{"", ErrEnvNameRequired},
		{"Prod", ErrEnvNameInvalid},
		{"prod db", ErrEnvNameInvalid},
		{"prod.1", ErrEnvNameInvalid},
		{"prödüction", ErrEnvNameInvalid},
		{strings.Repeat("a", 16), ErrEnvNameTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateEnvironmentName(tt.name); err != tt.wantErr {
				t.Errorf("ValidateEnvironmentName(%q) = %v, want %v", tt.name, err, tt.wantErr)
			}
		})
	}
}

// Any name built only from the allowed alphabet with 1-15 characters is accepted,
// and any such name with an uppercase letter spliced in is rejected.
func TestEnvironmentNameAlphabetProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("allowed alphabet within length is accepted", prop.ForAll(
		func(name string) bool {
			return ValidateEnvironmentName(name) == nil
		},
		gen.RegexMatch(`[a-z0-9_-]{1,15}`),
	))

	properties.Property("uppercase characters are rejected", prop.ForAll(
		func(prefix string, upper rune) bool {
			return ValidateEnvironmentName(prefix+string(upper)) == ErrEnvNameInvalid
		},
		gen.RegexMatch(`[a-z0-9]{0,10}`),
		gen.RuneRange('A', 'Z'),
	))

	properties.Property("names longer than 15 are rejected", prop.ForAll(
		func(name string) bool {
			return ValidateEnvironmentName(name) == ErrEnvNameTooLong
		},
		gen.RegexMatch(`[a-z0-9_-]{16,40}`),
	))

	properties.TestingRun(t)
}

func TestRoleOrdering(t *testing.T) {
	if !RoleOwner.AtLeast(RoleEditor) || !RoleOwner.AtLeast(RoleViewer) || !RoleOwner.AtLeast(RoleOwner) {
		t.Error("owner should satisfy every minimum")
	}
	if !RoleEditor.AtLeast(RoleViewer) || RoleEditor.AtLeast(RoleOwner) {
		t.Error("editor should satisfy viewer but not owner")
	}
	if RoleViewer.AtLeast(RoleEditor) {
		t.Error("viewer should not satisfy editor")
	}
	if Role("ADMIN").AtLeast(RoleViewer) {
		t.Error("unknown role should satisfy nothing")
	}
}

func TestParseRole(t *testing.T) {
	for in, want := range map[string]Role{"owner": RoleOwner, " Editor ": RoleEditor, "VIEWER": RoleViewer} {
		got, err := ParseRole(in)
		if err != nil || got != want {
			t.Errorf("ParseRole(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseRole("admin"); err != ErrInvalidRole {
		t.Errorf("expected ErrInvalidRole, got %v", err)
	}
}

func TestSecretJSONOmitsValue(t *testing.T) {
	s := Secret{ID: "s1", Key: "API_TOKEN", EncryptedValue: "00:ff"}
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, forbidden := range []string{"value", "encrypted_value", "EncryptedValue"} {
		if _, ok := fields[forbidden]; ok {
			t.Errorf("secret JSON contains %q: %s", forbidden, data)
		}
	}
}
