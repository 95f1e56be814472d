package conv

import "testing"

func TestItoa(t *testing.T) {
	var buf [20]byte
	cases := map[int64]string{0: "0", 7: "7", -42: "-42", 123456789: "123456789"}
	for n, want := range cases {
		if got := string(Itoa(buf[:], n)); got != want {
			t.Errorf("Itoa(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestUtoa(t *testing.T) {
	var buf [20]byte
	if got := string(Utoa(buf[:], 30000)); got != "30000" {
		t.Fatalf("Utoa = %q", got)
	}
}

func TestHex(t *testing.T) {
	var buf [8]byte
	if got := string(U8Hex(buf[:], 0xA1)); got != "A1" {
		t.Fatalf("U8Hex = %q", got)
	}
	if got := string(U32Hex(buf[:], 0x08A1)); got != "000008A1" {
		t.Fatalf("U32Hex = %q", got)
	}
	if got := U8Hex(buf[:1], 1); len(got) != 0 {
		t.Fatalf("short buffer should yield empty slice, got %q", got)
	}
}
