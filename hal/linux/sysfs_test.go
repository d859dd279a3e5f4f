package linux

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/ardnew/softi2c/hal"
)

// =============================================================================
// ParseClientName Tests
// =============================================================================

func TestParseClientName(t *testing.T) {
	tests := []struct {
		input   string
		bus     int
		addr    hal.Addr
		wantErr bool
	}{
		{"1-0076", 1, 0x76, false},
		{"0-0077", 0, 0x77, false},
		{"12-0008", 12, 0x08, false},
		{"i2c-1", 0, 0, true},
		{"1-76", 0, 0, true},
		{"x-0076", 0, 0, true},
		{"1-00zz", 0, 0, true},
		{"", 0, 0, true},
	}

	for _, tt := range tests {
		bus, addr, err := ParseClientName(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseClientName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if bus != tt.bus || addr != tt.addr {
			t.Errorf("ParseClientName(%q) = %d, %s, want %d, %s",
				tt.input, bus, addr, tt.bus, tt.addr)
		}
	}
}

func TestFormatClientName(t *testing.T) {
	if got := FormatClientName(1, 0x76); got != "1-0076" {
		t.Errorf("FormatClientName(1, 0x76) = %q, want %q", got, "1-0076")
	}
}

// =============================================================================
// parseModalias Tests
// =============================================================================

func TestParseModalias(t *testing.T) {
	tests := []struct {
		alias  string
		node   string
		compat []string
	}{
		{"of:NpressureT(null)Cmyi2c", "pressure", []string{"myi2c"}},
		{"of:NpressureT(null)Cbosch,bmp280Cmyi2c", "pressure", []string{"bosch,bmp280", "myi2c"}},
		{"of:Nsensor@76T<NULL>Cmyi2c", "sensor@76", []string{"myi2c"}},
		{"i2c:bmp280", "", []string{"bmp280"}},
		{"platform:foo", "", nil},
		{"of:NpressureT(null)", "pressure", nil},
	}

	for _, tt := range tests {
		node, compat := parseModalias(tt.alias)
		if node != tt.node {
			t.Errorf("parseModalias(%q) node = %q, want %q", tt.alias, node, tt.node)
		}
		if !reflect.DeepEqual(compat, tt.compat) {
			t.Errorf("parseModalias(%q) compat = %v, want %v", tt.alias, compat, tt.compat)
		}
	}
}

func TestSplitNulList(t *testing.T) {
	got := splitNulList([]byte("bosch,bmp280\x00myi2c\x00"))
	want := []string{"bosch,bmp280", "myi2c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("splitNulList() = %v, want %v", got, want)
	}
}

// =============================================================================
// ScanClients Tests
// =============================================================================

// writeFile creates path under root with the given content.
func writeFile(t *testing.T, root, path, content string) {
	t.Helper()
	full := filepath.Join(root, path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestScanClients(t *testing.T) {
	root := t.TempDir()

	// Devicetree client.
	writeFile(t, root, "1-0076/name", "pressure\n")
	writeFile(t, root, "1-0076/of_node/compatible", "bosch,bmp280\x00myi2c\x00")
	writeFile(t, root, "1-0076/of_node/name", "pressure\x00")

	// Client with only a modalias.
	writeFile(t, root, "2-0077/name", "bmp280\n")
	writeFile(t, root, "2-0077/modalias", "i2c:bmp280\n")

	// Adapter entry and junk are skipped.
	writeFile(t, root, "i2c-1/name", "bcm2835 (i2c@7e804000)\n")
	writeFile(t, root, "garbage/name", "x\n")

	clients, err := ScanClients(root)
	if err != nil {
		t.Fatalf("ScanClients() error = %v", err)
	}
	if len(clients) != 2 {
		t.Fatalf("len(clients) = %d, want 2", len(clients))
	}

	c := clients[0]
	if c.Bus != 1 || c.Addr != 0x76 {
		t.Errorf("client[0] = bus %d addr %s, want bus 1 addr 0x76", c.Bus, c.Addr)
	}
	if c.Name != "pressure" || c.Node != "pressure" {
		t.Errorf("client[0] name/node = %q/%q, want pressure/pressure", c.Name, c.Node)
	}
	if !c.Matches("myi2c") || c.Matches("myi2c-v2") {
		t.Errorf("client[0].Matches unexpected for %v", c.Compatible)
	}
	if c.DevPath() != "/dev/i2c-1" {
		t.Errorf("DevPath() = %q, want /dev/i2c-1", c.DevPath())
	}

	c = clients[1]
	if !reflect.DeepEqual(c.Compatible, []string{"bmp280"}) {
		t.Errorf("client[1].Compatible = %v, want [bmp280]", c.Compatible)
	}
}

func TestScanClients_MissingRoot(t *testing.T) {
	if _, err := ScanClients(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("ScanClients() error = nil, want error")
	}
}
