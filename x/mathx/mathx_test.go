package mathx

import "testing"

func TestClamp(t *testing.T) {
	if Clamp(5, 0, 3) != 3 || Clamp(-1, 0, 3) != 0 || Clamp(2, 3, 0) != 2 {
		t.Fatal("Clamp int")
	}
	if Clamp(1.5, 0.0, 1.0) != 1.0 {
		t.Fatal("Clamp float")
	}
}

func TestRoundDiv(t *testing.T) {
	cases := []struct{ a, b, want uint32 }{
		{10, 4, 3}, {9, 4, 2}, {0, 7, 0}, {7, 0, 0},
	}
	for _, c := range cases {
		if got := RoundDiv(c.a, c.b); got != c.want {
			t.Errorf("RoundDiv(%d,%d) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestMapU16(t *testing.T) {
	cases := []struct{ x, want uint16 }{
		{3000, 0}, {3400, 0}, {3740, 50}, {4080, 100}, {4200, 100},
	}
	for _, c := range cases {
		if got := MapU16(c.x, 3400, 4080, 0, 100); got != c.want {
			t.Errorf("MapU16(%d) = %d, want %d", c.x, got, c.want)
		}
	}
	if MapU16(5, 1, 1, 7, 9) != 7 {
		t.Fatal("degenerate input range")
	}
}
