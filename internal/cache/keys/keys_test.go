package keys

import (
	"regexp"
	"testing"
	"unicode"
)

func TestDeterminism_SameInputsSameKey(t *testing.T) {
	body := []byte(`{"sportKinds":["football"],"availabilities":[2]}`)
	k1 := Key("/FilterObjects", body)
	k2 := Key("/FilterObjects", append([]byte(nil), body...))
	if k1 != k2 {
		t.Fatalf("determinism failed:\n k1=%s\n k2=%s", k1, k2)
	}
}

func TestDifference_PayloadAndEndpointParticipate(t *testing.T) {
	a := Key("/FilterObjects", []byte(`{"availabilities":[1]}`))
	b := Key("/FilterObjects", []byte(`{"availabilities":[2]}`))
	c := Key("/FilterAreas", []byte(`{"availabilities":[1]}`))
	if a == b || a == c {
		t.Fatalf("keys must differ: %s %s %s", a, b, c)
	}
}

func TestShape_SafeCharactersAndHashSuffix(t *testing.T) {
	k := Key(" /List Sport/Kinds ", nil)
	for _, r := range k {
		if r > unicode.MaxASCII {
			t.Fatalf("non-ASCII rune leaked into key: %q in %s", r, k)
		}
	}
	if !regexp.MustCompile(`^List_Sport-Kinds:n=0:h=[0-9a-f]{16}$`).MatchString(k) {
		t.Fatalf("unexpected key shape: %s", k)
	}
}
