// Package probe discovers the machine's physical disks so the model can
// be seeded with real hardware. Discovery is read-only; nothing here
// writes to a device.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strconv"
	"time"
)

// Disk is one discovered physical disk.
type Disk struct {
	Name   string `json:"name"`
	Path   string `json:"path,omitempty"`
	Serial string `json:"serial,omitempty"`
	Size   int64  `json:"size"`
	Model  string `json:"model,omitempty"`
	Tran   string `json:"tran,omitempty"`
}

type lsblkJSON struct {
	Blockdevices []lsblkDevice `json:"blockdevices"`
}

type lsblkDevice struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Size   any    `json:"size"`
	Type   string `json:"type"`
	Serial string `json:"serial"`
	Model  string `json:"model"`
	Tran   string `json:"tran"`
}

func sizeToBytes(v any) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

// Collect lists whole disks via lsblk JSON output.
func Collect(ctx context.Context) ([]Disk, error) {
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(cctx, "lsblk", "-J", "-b", "-d", "-o", "NAME,PATH,SIZE,TYPE,SERIAL,MODEL,TRAN")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return nil, err
	}
	var tree lsblkJSON
	if err := json.Unmarshal(out.Bytes(), &tree); err != nil {
		return nil, err
	}
	disks := []Disk{}
	for _, d := range tree.Blockdevices {
		if d.Type != "disk" {
			continue
		}
		serial := d.Serial
		if serial == "" {
			serial = d.Name
		}
		disks = append(disks, Disk{
			Name:   d.Name,
			Path:   d.Path,
			Serial: serial,
			Size:   sizeToBytes(d.Size),
			Model:  d.Model,
			Tran:   d.Tran,
		})
	}
	return disks, nil
}

// Available reports whether lsblk can be run at all.
func Available() bool {
	_, err := exec.LookPath("lsblk")
	return err == nil
}

// Mock is the fallback inventory used when lsblk is unavailable, so the
// wizard still has something to render in development.
func Mock() []Disk {
	return []Disk{
		{Name: "sda", Path: "/dev/sda", Serial: "MOCKA123", Size: 1000204886016, Model: "Disk A", Tran: "sata"},
		{Name: "nvme0n1", Path: "/dev/nvme0n1", Serial: "MOCKNVME", Size: 512110190592, Model: "NVMe 512G", Tran: "nvme"},
	}
}
