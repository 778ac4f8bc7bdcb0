package network

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus/hooks/test"
)

type translateTestCase struct {
	name      string
	selectors []string
	wantIPv4  []string
	wantIPv6  []string
}

func getTranslateTestCases() []translateTestCase {
	return []translateTestCase{
		{
			name:      "default include selectors cover both families",
			selectors: DefaultIncludeSelectors(),
			wantIPv4:  []string{"match ip src 0/0 "},
			wantIPv6:  []string{"match ip6 src ::/0 "},
		},
		{
			name:      "ipv4 destination with port stays ipv4 only",
			selectors: []string{"dst=10.0.0.5,dport=80"},
			wantIPv4:  []string{"match ip dst 10.0.0.5 match ip dport 80 0xffff "},
		},
		{
			name:      "ipv6 source with port stays ipv6 only",
			selectors: []string{"src=2001:db8::1,sport=443"},
			wantIPv6:  []string{"match ip6 src 2001:db8::1 match ip6 sport 443 0xffff "},
		},
		{
			name:      "port-only selector applies to both families",
			selectors: []string{"dport=22"},
			wantIPv4:  []string{"match ip dport 22 0xffff "},
			wantIPv6:  []string{"match ip6 dport 22 0xffff "},
		},
		{
			name:      "ssh exclude seed",
			selectors: []string{"dport=22", "sport=22"},
			wantIPv4:  []string{"match ip dport 22 0xffff ", "match ip sport 22 0xffff "},
			wantIPv6:  []string{"match ip6 dport 22 0xffff ", "match ip6 sport 22 0xffff "},
		},
		{
			name:      "addresses from both families split across fragments",
			selectors: []string{"src=10.0.0.1,dst=fe80::1"},
			wantIPv4:  []string{"match ip src 10.0.0.1 "},
			wantIPv6:  []string{"match ip6 dst fe80::1 "},
		},
		{
			name:      "value containing equals sign is kept verbatim",
			selectors: []string{"dst=10.0.0.5=odd"},
			wantIPv4:  []string{"match ip dst 10.0.0.5=odd "},
		},
		{
			name:      "malformed selector is skipped, rest survive",
			selectors: []string{"garbage", "dst=10.0.0.5"},
			wantIPv4:  []string{"match ip dst 10.0.0.5 "},
		},
		{
			name:      "malformed token poisons the whole selector",
			selectors: []string{"dst=10.0.0.5,garbage"},
		},
		{
			name:      "empty key poisons the selector",
			selectors: []string{"=22"},
		},
		{
			name: "no selectors",
		},
	}
}

func TestTranslateSelectors(t *testing.T) {
	t.Parallel()

	for _, tc := range getTranslateTestCases() {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			log, _ := test.NewNullLogger()
			ipv4, ipv6 := TranslateSelectors(log, tc.selectors)

			if diff := cmp.Diff(tc.wantIPv4, ipv4); diff != "" {
				t.Errorf("ipv4 fragments mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tc.wantIPv6, ipv6); diff != "" {
				t.Errorf("ipv6 fragments mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTranslateSelectorsWarnsOnMalformed(t *testing.T) {
	t.Parallel()

	log, hook := test.NewNullLogger()
	TranslateSelectors(log, []string{"dst=10.0.0.5", "bogus", "sport=22"})

	if len(hook.Entries) != 1 {
		t.Fatalf("expected exactly one log entry, got %d", len(hook.Entries))
	}

	entry := hook.LastEntry()
	if entry.Message != "Skipping malformed flow selector" {
		t.Errorf("unexpected log message: %q", entry.Message)
	}
	if entry.Data["selector"] != "bogus" {
		t.Errorf("expected selector field %q, got %v", "bogus", entry.Data["selector"])
	}
}
