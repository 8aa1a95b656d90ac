package entry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	cases := []struct {
		name string
		line string
		kind Kind
		want string
		ok   bool
	}{
		{"plain ip", "185.220.101.1", KindIP, "185.220.101.1", true},
		{"cidr", "10.0.0.0/8", KindIP, "10.0.0.0/8", true},
		{"blank", "   ", KindIP, "", false},
		{"empty", "", KindIP, "", false},
		{"comment line", "# some comment", KindIP, "", false},
		{"hash truncation", "185.220.101.1 # tor exit", KindIP, "185.220.101.1", true},
		{"semicolon truncation", "185.220.101.1; details here", KindIP, "185.220.101.1", true},
		{"tab truncation", "185.220.101.1\tdetails", KindIP, "185.220.101.1", true},
		{"hash before semicolon wins", "185.220.101.1 # foo ; bar", KindIP, "185.220.101.1", true},
		{"semicolon before hash wins", "185.220.101.1 ; foo # bar", KindIP, "185.220.101.1", true},
		{"truncates to empty", "   # only a comment after ws", KindIP, "", false},
		{"email lowercased", "TempMail.COM", KindEmail, "tempmail.com", true},
		{"email with trailing comment", "TempMail.COM # burner", KindEmail, "tempmail.com", true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := Parse(c.line, c.kind)
			assert.Equal(t, c.ok, ok)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestParseFile(t *testing.T) {
	body := []byte("185.220.101.1\n# comment\n\n10.0.0.0/8 ; some network\n185.220.101.1\n")
	got := ParseFile(body, KindIP)

	assert.Len(t, got, 2)
	_, ok1 := got["185.220.101.1"]
	_, ok2 := got["10.0.0.0/8"]
	assert.True(t, ok1)
	assert.True(t, ok2)
}
