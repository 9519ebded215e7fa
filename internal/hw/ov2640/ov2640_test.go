package ov2640

import "testing"

func TestTablesHaveNoEndMarker(t *testing.T) {
	tables := map[string][]Reg{
		"JPEGInit":      JPEGInit,
		"YUV422":        YUV422,
		"JPEG":          JPEG,
		"JPEG160x120":   JPEG160x120,
		"JPEG176x144":   JPEG176x144,
		"JPEG320x240":   JPEG320x240,
		"JPEG352x288":   JPEG352x288,
		"JPEG640x480":   JPEG640x480,
		"JPEG800x600":   JPEG800x600,
		"JPEG1024x768":  JPEG1024x768,
		"JPEG1280x1024": JPEG1280x1024,
		"JPEG1600x1200": JPEG1600x1200,
	}
	for name, tbl := range tables {
		if len(tbl) == 0 {
			t.Errorf("%s is empty", name)
			continue
		}
		for i, r := range tbl {
			if r.Addr == 0xff && r.Val == 0xff {
				t.Errorf("%s[%d]: unexpected 0xff/0xff end marker", name, i)
			}
		}
	}
}

func TestResolutionTablesSelectBankFirst(t *testing.T) {
	for _, tbl := range [][]Reg{JPEG160x120, JPEG640x480, JPEG1600x1200} {
		if tbl[0] != (Reg{BankSelect, BankSensor}) {
			t.Errorf("first entry = %+v, want sensor bank select", tbl[0])
		}
	}
}

func TestResolutionTablesAreDistinct(t *testing.T) {
	tables := [][]Reg{
		JPEG160x120, JPEG176x144, JPEG320x240, JPEG352x288, JPEG640x480,
		JPEG800x600, JPEG1024x768, JPEG1280x1024, JPEG1600x1200,
	}
	for i := range tables {
		for j := i + 1; j < len(tables); j++ {
			if &tables[i][0] == &tables[j][0] {
				t.Errorf("tables %d and %d share storage", i, j)
			}
			if equal(tables[i], tables[j]) {
				t.Errorf("tables %d and %d have identical content", i, j)
			}
		}
	}
}

func equal(a, b []Reg) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
