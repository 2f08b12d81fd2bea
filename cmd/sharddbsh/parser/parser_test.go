package parser

import "testing"

func TestParse(t *testing.T) {
	cmd, err := Parse("  .invoke orders.insert o-1 widget  ")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cmd.Name != ".invoke" {
		t.Fatalf("Name = %q", cmd.Name)
	}
	if len(cmd.Args) != 3 || cmd.Args[0] != "orders.insert" {
		t.Fatalf("Args = %v", cmd.Args)
	}
}

func TestParse_Errors(t *testing.T) {
	if _, err := Parse("   "); err == nil {
		t.Fatalf("expected error for blank line")
	}
	if _, err := Parse("invoke orders.select o-1"); err == nil {
		t.Fatalf("expected error for missing dot prefix")
	}
}

func TestParseArg(t *testing.T) {
	cases := []struct {
		token string
		want  any
	}{
		{"42", float64(42)},
		{"3.5", float64(3.5)},
		{"true", true},
		{"null", nil},
		{`"quoted"`, "quoted"},
		{"o-1", "o-1"}, // bare identifiers stay strings
		{"widget", "widget"},
	}
	for _, c := range cases {
		if got := ParseArg(c.token); got != c.want {
			t.Fatalf("ParseArg(%q) = %v (%T), want %v", c.token, got, got, c.want)
		}
	}
}

func TestParseArg_JSONObject(t *testing.T) {
	got := ParseArg(`{"qty":2}`)
	m, ok := got.(map[string]any)
	if !ok {
		t.Fatalf("ParseArg object = %T", got)
	}
	if m["qty"] != float64(2) {
		t.Fatalf("qty = %v", m["qty"])
	}
}

func TestValidateArgs(t *testing.T) {
	cmd := &Command{Name: ".invoke", Args: []string{"orders.select"}}
	if err := ValidateArgs(cmd, 1); err != nil {
		t.Fatalf("ValidateArgs: %v", err)
	}
	if err := ValidateArgs(cmd, 2); err == nil {
		t.Fatalf("expected error for missing arguments")
	}
}
