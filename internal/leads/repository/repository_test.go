package repository

import (
	"reflect"
	"testing"
)

func TestIdentityLockKeys(t *testing.T) {
	tests := []struct {
		name  string
		phone string
		email string
		want  []string
	}{
		{
			name:  "phone and email lock in fixed order",
			phone: "+491701234567",
			email: "jan@example.com",
			want:  []string{"lead:phone:+491701234567", "lead:email:jan@example.com"},
		},
		{
			name:  "phone only",
			phone: "+491701234567",
			want:  []string{"lead:phone:+491701234567"},
		},
		{
			name:  "email only",
			email: "jan@example.com",
			want:  []string{"lead:email:jan@example.com"},
		},
		{
			name: "no identity takes no locks",
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := identityLockKeys(tt.phone, tt.email)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("identityLockKeys(%q, %q) = %v, want %v", tt.phone, tt.email, got, tt.want)
			}
		})
	}
}

// The lock order must never depend on the field values themselves; two
// concurrent inserts for overlapping identities acquire phone first, email
// second, so neither can hold one key while waiting on the other in reverse.
func TestIdentityLockKeysOrderIsStable(t *testing.T) {
	a := identityLockKeys("111", "zzz@example.com")
	b := identityLockKeys("999", "aaa@example.com")

	if len(a) != 2 || len(b) != 2 {
		t.Fatalf("expected two keys each, got %v and %v", a, b)
	}
	if a[0][:11] != "lead:phone:" || b[0][:11] != "lead:phone:" {
		t.Errorf("phone key must come first: %v, %v", a, b)
	}
}
