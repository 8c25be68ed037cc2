package render

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
)

var testCacheUUID = uuid.MustParse("9f1c1a52-3c6e-4d8e-a0a1-5f0d1e2b3c4d")

func testProperties() *core1_0.PhysicalDeviceProperties {
	return &core1_0.PhysicalDeviceProperties{
		VendorID:          0x10de,
		DeviceID:          0x2204,
		PipelineCacheUUID: testCacheUUID,
	}
}

func encodeCache(t *testing.T, header cacheHeader, payload []byte) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := binary.Write(buf, common.ByteOrder, header); err != nil {
		t.Fatal(err)
	}
	buf.Write(payload)
	return buf.Bytes()
}

func validHeader() cacheHeader {
	return cacheHeader{
		Length:   cacheHeaderSize,
		Version:  cacheHeaderVersion,
		VendorID: 0x10de,
		DeviceID: 0x2204,
		UUID:     testCacheUUID,
	}
}

func TestParseCacheHeader(t *testing.T) {
	data := encodeCache(t, validHeader(), []byte("blob"))
	if len(data) != cacheHeaderSize+4 {
		t.Fatalf("encoded cache is %d bytes, header should be %d", len(data), cacheHeaderSize)
	}

	header, err := parseCacheHeader(data)
	if err != nil {
		t.Fatalf("parseCacheHeader() error = %v", err)
	}
	if header != validHeader() {
		t.Errorf("parseCacheHeader() = %+v, want %+v", header, validHeader())
	}
	if err := header.matches(testProperties()); err != nil {
		t.Errorf("matches() = %v, want nil", err)
	}

	if _, err := parseCacheHeader(data[:cacheHeaderSize-1]); err == nil {
		t.Error("parseCacheHeader() on a truncated header should fail")
	}
}

func TestCacheHeaderMismatch(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*cacheHeader)
	}{
		{"short length", func(h *cacheHeader) { h.Length = 16 }},
		{"version", func(h *cacheHeader) { h.Version = 2 }},
		{"vendor", func(h *cacheHeader) { h.VendorID = 0x1002 }},
		{"device", func(h *cacheHeader) { h.DeviceID = 0x1 }},
		{"uuid", func(h *cacheHeader) { h.UUID = uuid.Nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := validHeader()
			tt.mutate(&h)
			if err := h.matches(testProperties()); err == nil {
				t.Error("matches() = nil, want a mismatch")
			}
		})
	}
}

func TestLoadCacheData(t *testing.T) {
	dir := t.TempDir()

	t.Run("no path", func(t *testing.T) {
		if data := loadCacheData("", testProperties()); data != nil {
			t.Errorf("loadCacheData(\"\") = %d bytes, want nil", len(data))
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if data := loadCacheData(filepath.Join(dir, "missing.bin"), testProperties()); data != nil {
			t.Errorf("loadCacheData() = %d bytes, want nil", len(data))
		}
	})

	t.Run("matching", func(t *testing.T) {
		path := filepath.Join(dir, "good.bin")
		want := encodeCache(t, validHeader(), []byte("pipelines"))
		if err := os.WriteFile(path, want, 0o644); err != nil {
			t.Fatal(err)
		}
		if got := loadCacheData(path, testProperties()); !bytes.Equal(got, want) {
			t.Errorf("loadCacheData() = %d bytes, want %d", len(got), len(want))
		}
	})

	t.Run("other device is discarded and removed", func(t *testing.T) {
		path := filepath.Join(dir, "stale.bin")
		h := validHeader()
		h.DeviceID++
		if err := os.WriteFile(path, encodeCache(t, h, nil), 0o644); err != nil {
			t.Fatal(err)
		}
		if data := loadCacheData(path, testProperties()); data != nil {
			t.Errorf("loadCacheData() = %d bytes, want nil", len(data))
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("stale cache file still present: %v", err)
		}
	})

	t.Run("garbage is discarded", func(t *testing.T) {
		path := filepath.Join(dir, "garbage.bin")
		if err := os.WriteFile(path, []byte("nope"), 0o644); err != nil {
			t.Fatal(err)
		}
		if data := loadCacheData(path, testProperties()); data != nil {
			t.Errorf("loadCacheData() = %d bytes, want nil", len(data))
		}
	})
}

func TestNilPipelineCache(t *testing.T) {
	var c *PipelineCache
	if c.handlePtr() != nil {
		t.Error("nil cache should build uncached")
	}
	if err := c.Save(); err != nil {
		t.Errorf("Save() on nil cache = %v", err)
	}
	c.Destroy()
}
