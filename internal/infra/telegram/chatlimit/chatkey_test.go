package chatlimit_test

import (
	"testing"

	"tgrate/internal/infra/telegram/chatlimit"
)

func TestChatKeyEquality(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		a, b chatlimit.ChatKey
		want bool
	}{
		{"same id", chatlimit.ChatID(42), chatlimit.ChatID(42), true},
		{"different id", chatlimit.ChatID(42), chatlimit.ChatID(43), false},
		{"same username", chatlimit.ChatUsername("news"), chatlimit.ChatUsername("news"), true},
		{"different username", chatlimit.ChatUsername("news"), chatlimit.ChatUsername("sport"), false},
		{"id never equals username variant", chatlimit.ChatID(42), chatlimit.ChatUsername("42"), false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := tc.a == tc.b
			if got != tc.want {
				t.Fatalf("%v == %v = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}
