package layout

import (
	"errors"
	"strings"
	"testing"

	"github.com/raharper/subiquity/internal/model"
)

const sampleDoc = `
bootloader: uefi
disks:
  - serial: sda
    size: 100G
    partitions:
      - size: 512M
        flag: boot
        fstype: fat32
        mount: /boot/efi
      - size: 40G
        fstype: ext4
        mount: /
  - serial: sdb
    size: 100G
  - serial: sdc
    size: 100G
volgroups:
  - name: vg0
    devices: [sdb, sdc]
    volumes:
      - name: home
        size: 50G
        fstype: ext4
        mount: /home
`

func TestLoadValid(t *testing.T) {
	doc, err := Load([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if doc.Bootloader != "uefi" {
		t.Errorf("bootloader = %q, want uefi", doc.Bootloader)
	}
	if len(doc.Disks) != 3 || len(doc.VolGroups) != 1 {
		t.Errorf("got %d disks, %d volgroups", len(doc.Disks), len(doc.VolGroups))
	}
	if doc.Disks[0].Partitions[0].Flag != "boot" {
		t.Errorf("flag = %q", doc.Disks[0].Partitions[0].Flag)
	}
}

func TestLoadRejectsMissingBootloader(t *testing.T) {
	_, err := Load([]byte("disks:\n  - serial: sda\n    size: 1G\n"))
	if !errors.Is(err, ErrInvalidLayout) {
		t.Fatalf("err = %v, want ErrInvalidLayout", err)
	}
}

func TestLoadRejectsUnknownField(t *testing.T) {
	doc := `
bootloader: bios
disks:
  - serial: sda
    size: 1G
    colour: red
`
	if _, err := Load([]byte(doc)); !errors.Is(err, ErrInvalidLayout) {
		t.Fatalf("err = %v, want ErrInvalidLayout", err)
	}
}

func TestApplyBuildsModel(t *testing.T) {
	doc, err := Load([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	m, plan, err := Apply(doc)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	for _, label := range []string{"sda", "sda-part1", "sda-part2", "vg0", "vg0-home"} {
		if _, ok := m.DeviceByLabel(label); !ok {
			t.Errorf("device %q missing from model", label)
		}
	}
	mps := m.MountPoints()
	if mps["/"] != "sda-part2" || mps["/home"] != "vg0-home" {
		t.Errorf("mountpoints = %v", mps)
	}

	var order []string
	for _, step := range plan.Steps {
		if strings.HasPrefix(step.Command, "mount ") {
			order = append(order, step.Command)
		}
	}
	if len(order) != 3 || !strings.HasSuffix(order[0], " /target/") {
		t.Errorf("mount order = %v, want / first", order)
	}
	if !strings.HasSuffix(order[len(order)-1], "/target/boot/efi") {
		t.Errorf("mount order = %v, want /boot/efi last", order)
	}
}

func TestApplyRaid(t *testing.T) {
	doc := `
bootloader: bios
disks:
  - serial: sdb
    size: 100G
  - serial: sdc
    size: 100G
raids:
  - name: md0
    level: raid1
    devices: [sdb, sdc]
    fstype: ext4
    mount: /srv
`
	d, err := Load([]byte(doc))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	m, plan, err := Apply(d)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if _, ok := m.DeviceByLabel("md0"); !ok {
		t.Fatal("md0 missing from model")
	}
	var sawAssemble bool
	for _, step := range plan.Steps {
		if strings.HasPrefix(step.Command, "mdadm --create /dev/md/md0") {
			sawAssemble = true
			if !step.Destructive {
				t.Error("mdadm step should be destructive")
			}
		}
	}
	if !sawAssemble {
		t.Errorf("no mdadm step in %v", plan.Steps)
	}
}

func TestApplyEncryptedVolGroup(t *testing.T) {
	doc := `
bootloader: bios
disks:
  - serial: sdb
    size: 100G
volgroups:
  - name: secret
    devices: [sdb]
    encrypt_key: hunter2
    volumes:
      - name: data
        size: 10G
`
	d, err := Load([]byte(doc))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	m, plan, err := Apply(d)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	d2, ok := m.DeviceByLabel("secret")
	if !ok {
		t.Fatal("volgroup missing from model")
	}
	vg, ok := d2.(*model.VolGroup)
	if !ok {
		t.Fatalf("secret is a %T, want *model.VolGroup", d2)
	}
	ann := vg.Annotations()
	if len(ann) != 1 || ann[0] != "encrypted" {
		t.Errorf("annotations = %v, want [encrypted]", ann)
	}
	var sawCrypt bool
	for _, step := range plan.Steps {
		if strings.HasPrefix(step.Command, "cryptsetup luksFormat") {
			sawCrypt = true
		}
	}
	if !sawCrypt {
		t.Error("no cryptsetup step in plan")
	}
}

func TestApplyUnknownDeviceRef(t *testing.T) {
	doc := `
bootloader: bios
disks:
  - serial: sdb
    size: 100G
raids:
  - name: md0
    level: raid1
    devices: [sdb, nope]
`
	d, err := Load([]byte(doc))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, _, err := Apply(d); !errors.Is(err, ErrInvalidLayout) {
		t.Fatalf("err = %v, want ErrInvalidLayout", err)
	}
}

func TestApplyCapacityExceeded(t *testing.T) {
	doc := `
bootloader: bios
disks:
  - serial: sda
    size: 10G
    partitions:
      - size: 20G
`
	d, err := Load([]byte(doc))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, _, err := Apply(d); !errors.Is(err, model.ErrCapacityExceeded) {
		t.Fatalf("err = %v, want ErrCapacityExceeded", err)
	}
}
