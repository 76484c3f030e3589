package fees

import (
	"testing"
	"time"
)

func TestAcademicMonthOrder(t *testing.T) {
	if April >= May {
		t.Fatalf("April must order before May")
	}
	if December >= January {
		t.Fatalf("December must order before January in an academic session")
	}
	if February >= March {
		t.Fatalf("February must order before March")
	}
	if int(April) != 1 || int(March) != 12 {
		t.Fatalf("session must span April(1)..March(12), got %d..%d", April, March)
	}
}

func TestMonthOfRoundTrip(t *testing.T) {
	for cal := time.January; cal <= time.December; cal++ {
		m := MonthOf(cal)
		if !m.Valid() {
			t.Fatalf("MonthOf(%s) out of range: %d", cal, m)
		}
		if m.Calendar() != cal {
			t.Fatalf("round trip for %s: got %s", cal, m.Calendar())
		}
	}
	if MonthOf(time.April) != April {
		t.Fatalf("calendar April must map to ordinal 1")
	}
	if MonthOf(time.March) != March {
		t.Fatalf("calendar March must map to ordinal 12")
	}
}

func TestParseAcademicMonth(t *testing.T) {
	m, err := ParseAcademicMonth("april")
	if err != nil {
		t.Fatalf("parse april: %v", err)
	}
	if m != April {
		t.Fatalf("expected April, got %s", m)
	}
	if _, err := ParseAcademicMonth("Aprilis"); err == nil {
		t.Fatalf("expected error for unknown month")
	}
}
