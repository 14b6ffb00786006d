package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestPartitionFormatMountFlow(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/storage/devices/sda/partitions",
		map[string]string{"size": "10G"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create partition: %d %s", rec.Code, rec.Body.String())
	}
	var part deviceView
	decode(t, rec, &part)
	if part.Label != "sda-part1" || part.Type != "partition" {
		t.Fatalf("partition = %+v", part)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/v1/storage/devices/"+part.ID+"/filesystem",
		map[string]string{"fstype": "ext4"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("format: %d %s", rec.Code, rec.Body.String())
	}
	var fs struct {
		ID string `json:"id"`
	}
	decode(t, rec, &fs)

	rec = doJSON(t, h, http.MethodPost, "/api/v1/storage/filesystems/"+fs.ID+"/mount",
		map[string]string{"path": "/srv"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("mount: %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodGet, "/api/v1/storage/mountpoints", nil)
	var mps struct {
		Mountpoints map[string]string `json:"mountpoints"`
	}
	decode(t, rec, &mps)
	if mps.Mountpoints["/srv"] != "sda-part1" {
		t.Errorf("mountpoints = %v", mps.Mountpoints)
	}
}

func TestPartitionCapacityExceeded(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := doJSON(t, h, http.MethodPost, "/api/v1/storage/devices/sda/partitions",
		map[string]string{"size": "200G"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestRaidConsumesMembers(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := doJSON(t, h, http.MethodPost, "/api/v1/storage/raids",
		map[string]any{"name": "md0", "level": "raid1", "devices": []string{"sda", "sdb"}})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create raid: %d %s", rec.Code, rec.Body.String())
	}
	var raid deviceView
	decode(t, rec, &raid)
	if raid.Type != "raid" || raid.Label != "md0" {
		t.Fatalf("raid = %+v", raid)
	}

	// Consumed members reject further mutation.
	rec = doJSON(t, h, http.MethodPost, "/api/v1/storage/devices/sda/partitions",
		map[string]string{"size": "1G"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("partition consumed disk: %d, want 409", rec.Code)
	}
}

func TestRaidTooFewDevices(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := doJSON(t, h, http.MethodPost, "/api/v1/storage/raids",
		map[string]any{"name": "md0", "level": "raid5", "devices": []string{"sda", "sdb"}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestVolGroupLifecycle(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := doJSON(t, h, http.MethodPost, "/api/v1/storage/volgroups",
		map[string]any{"name": "vg0", "devices": []string{"sdb", "sdc"}})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create volgroup: %d %s", rec.Code, rec.Body.String())
	}
	var vg deviceView
	decode(t, rec, &vg)

	rec = doJSON(t, h, http.MethodPost, "/api/v1/storage/volgroups/"+vg.ID+"/logicalvolumes",
		map[string]string{"name": "data", "size": "50G"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create lv: %d %s", rec.Code, rec.Body.String())
	}
	var lv deviceView
	decode(t, rec, &lv)
	if lv.Label != "vg0-data" || lv.Type != "lvm_partition" {
		t.Fatalf("lv = %+v", lv)
	}

	// Deleting the group cascades its volumes.
	rec = doJSON(t, h, http.MethodDelete, "/api/v1/storage/devices/"+vg.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete volgroup: %d %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, h, http.MethodGet, "/api/v1/storage/devices/"+lv.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("lv still present after cascade: %d", rec.Code)
	}
}

func TestDMCryptRequiresKey(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := doJSON(t, h, http.MethodPost, "/api/v1/storage/dmcrypts",
		map[string]string{"device": "sda", "key": ""})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestMakeBootSetsFlag(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := doJSON(t, h, http.MethodPost, "/api/v1/storage/devices/sda/partitions",
		map[string]string{"size": "1G"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create partition: %d", rec.Code)
	}
	var part deviceView
	decode(t, rec, &part)

	rec = doJSON(t, h, http.MethodPost, "/api/v1/storage/devices/"+part.ID+"/make-boot", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("make-boot: %d %s", rec.Code, rec.Body.String())
	}

	// The flagged partition refuses deletion.
	rec = doJSON(t, h, http.MethodDelete, "/api/v1/storage/devices/"+part.ID, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("delete boot partition: %d, want 409", rec.Code)
	}
}

func TestPlanLayout(t *testing.T) {
	h, _ := newTestRouter(t)
	doc := `
bootloader: bios
disks:
  - serial: vda
    size: 50G
    partitions:
      - size: 20G
        fstype: ext4
        mount: /
`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/storage/layout/plan", strings.NewReader(doc))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d %s", rec.Code, rec.Body.String())
	}
	var plan struct {
		Steps []struct {
			Command string `json:"command"`
		} `json:"steps"`
	}
	decode(t, rec, &plan)
	if len(plan.Steps) != 3 {
		t.Fatalf("got %d steps, want sgdisk+mkfs+mount", len(plan.Steps))
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/storage/layout/plan", strings.NewReader("disks: 12"))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
