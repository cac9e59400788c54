package heroes

import (
	"strings"
	"testing"
)

func TestName(t *testing.T) {
	cases := map[int]string{
		1:   "Anti-Mage",
		14:  "Pudge",
		53:  "Nature's Prophet",
		999: "Hero#999",
	}
	for id, want := range cases {
		if got := Name(id); got != want {
			t.Errorf("Name(%d)=%q, expected %q", id, got, want)
		}
	}
}

func TestIconURL(t *testing.T) {
	cases := map[int]string{
		1:  "antimage",
		11: "nevermore",
		14: "pudge",
	}
	for id, internal := range cases {
		url := IconURL(id)
		if !strings.Contains(url, internal) || !strings.HasPrefix(url, "https://") || !strings.HasSuffix(url, ".png") {
			t.Errorf("IconURL(%d)=%q, expected an https png containing %q", id, url, internal)
		}
	}

	if url := IconURL(999); url != "" {
		t.Errorf("IconURL(999)=%q, expected empty", url)
	}
}
