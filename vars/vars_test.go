package vars

import "testing"

func TestFirstNonZero(t *testing.T) {
	if got := FirstNonZero("", "foo", "bar"); got != "foo" {
		t.Fatalf("got %s", got)
	}
	if got := FirstNonZero(0, 0); got != 0 {
		t.Fatalf("got %d", got)
	}
}

func TestParseBool(t *testing.T) {
	for str, want := range map[string]bool{
		"true": true,
		"Yes":  true,
		"on":   true,
		"1":    true,
		"F":    false,
		"off":  false,
		" no ": false,
	} {
		got, err := ParseBool(str)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Fatalf("%s: got %v", str, got)
		}
	}
	if _, err := ParseBool("maybe"); err == nil {
		t.Fatal("should fail")
	}
}
