package model

import (
	"fmt"

	"github.com/google/uuid"
)

// Entity is anything recorded in the model's ordered action log.
type Entity interface {
	ID() string
}

// Device is a block-storage entity addressable by wizard screens.
type Device interface {
	Entity
	Kind() DeviceKind
	Label() string
	Size() int64
}

// DeviceKind is the closed set of device types. Action applicability is
// a fixed property of the kind; see SupportedActions.
type DeviceKind int

const (
	KindDisk DeviceKind = iota
	KindPartition
	KindRaid
	KindVolGroup
	KindLogicalVolume
	KindDMCrypt
)

var kindNames = [...]string{
	KindDisk:          "disk",
	KindPartition:     "partition",
	KindRaid:          "raid",
	KindVolGroup:      "lvm_volgroup",
	KindLogicalVolume: "lvm_partition",
	KindDMCrypt:       "dm_crypt",
}

func (k DeviceKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// volume carries the consumed-by back-reference shared by every device
// that can be formatted or folded into a RAID, volume group or crypt
// volume. The reference is maintained exclusively by model mutators.
type volume struct {
	id       string
	consumer Entity // *Filesystem, *Raid, *VolGroup or *DMCrypt; nil when unconsumed
}

func newVolume() volume { return volume{id: uuid.NewString()} }

func (v *volume) ID() string { return v.id }

// ConsumedBy returns the entity currently consuming the device, or nil.
func (v *volume) ConsumedBy() Entity { return v.consumer }

func (v *volume) setConsumer(e Entity) { v.consumer = e }

// consumable is satisfied by every device that can be consumed.
type consumable interface {
	Device
	ConsumedBy() Entity
	setConsumer(Entity)
}

// Disk is a physical block device. It either owns partitions or is
// consumed whole as a raw volume, never both.
type Disk struct {
	volume
	Serial     string
	SizeBytes  int64
	Bootloader Bootloader // mode snapshot taken when the disk was added
	Boot       bool
	partitions []*Partition
}

func (d *Disk) Kind() DeviceKind { return KindDisk }
func (d *Disk) Label() string { return d.Serial }
func (d *Disk) Size() int64 { return d.SizeBytes }
func (d *Disk) Partitions() []*Partition { return d.partitions }

// Partition is a sized region of a Disk or Raid.
type Partition struct {
	volume
	Number    int
	SizeBytes int64
	Flag      string
	parent    Device // *Disk or *Raid
}

func (p *Partition) Kind() DeviceKind { return KindPartition }
func (p *Partition) Label() string {
	return fmt.Sprintf("%s-part%d", p.parent.Label(), p.Number)
}
func (p *Partition) Size() int64 { return p.SizeBytes }
func (p *Partition) Parent() Device { return p.parent }

// Raid composes member devices into one array. The array has its own
// partitionable capacity and can itself be consumed, recursively.
type Raid struct {
	volume
	Name       string
	Level      string
	Boot       bool
	devices    []Device
	spares     []Device
	partitions []*Partition
}

func (r *Raid) Kind() DeviceKind { return KindRaid }
func (r *Raid) Label() string { return r.Name }
func (r *Raid) Size() int64 { return raidSize(r.Level, r.devices) }
func (r *Raid) Devices() []Device { return r.devices }
func (r *Raid) Spares() []Device { return r.spares }
func (r *Raid) Partitions() []*Partition { return r.partitions }

// raidMinDevices is the minimum active member count per mdadm level.
var raidMinDevices = map[string]int{
	"raid0":  2,
	"raid1":  2,
	"raid5":  3,
	"raid6":  4,
	"raid10": 4,
}

// raidSize is the usable capacity of an array built at the given level
// from the given members.
func raidSize(level string, devices []Device) int64 {
	if len(devices) == 0 {
		return 0
	}
	smallest := devices[0].Size()
	var sum int64
	for _, d := range devices {
		s := d.Size()
		sum += s
		if s < smallest {
			smallest = s
		}
	}
	switch level {
	case "raid0":
		return sum
	case "raid1":
		return smallest
	case "raid5":
		return smallest * int64(len(devices)-1)
	case "raid6":
		return smallest * int64(len(devices)-2)
	case "raid10":
		return smallest * int64(len(devices)/2)
	}
	return 0
}

// VolGroup pools member capacity for logical volumes. It cannot be
// partitioned or consumed, only carved into logical volumes.
type VolGroup struct {
	id      string
	Name    string
	devices []Device
	lvs     []*LogicalVolume
}

func (vg *VolGroup) ID() string { return vg.id }
func (vg *VolGroup) Kind() DeviceKind { return KindVolGroup }
func (vg *VolGroup) Label() string { return vg.Name }
func (vg *VolGroup) Devices() []Device { return vg.devices }

func (vg *VolGroup) Size() int64 {
	var sum int64
	for _, d := range vg.devices {
		sum += d.Size()
	}
	return sum
}

func (vg *VolGroup) LogicalVolumes() []*LogicalVolume { return vg.lvs }

// Annotations reports UI-facing qualifiers; currently "encrypted" when
// any member is a crypt volume.
func (vg *VolGroup) Annotations() []string {
	anns := []string{}
	for _, d := range vg.devices {
		if _, ok := d.(*DMCrypt); ok {
			anns = append(anns, "encrypted")
			break
		}
	}
	return anns
}

// LogicalVolume is a sized allocation carved from a volume group.
type LogicalVolume struct {
	volume
	Name      string
	SizeBytes int64
	vg        *VolGroup
}

func (lv *LogicalVolume) Kind() DeviceKind { return KindLogicalVolume }
func (lv *LogicalVolume) Label() string { return lv.vg.Name + "-" + lv.Name }
func (lv *LogicalVolume) Size() int64 { return lv.SizeBytes }
func (lv *LogicalVolume) VolGroup() *VolGroup { return lv.vg }

// DMCrypt wraps one backing device and exposes a new consumable volume
// of the same size.
type DMCrypt struct {
	volume
	key     string
	backing Device
}

func (d *DMCrypt) Kind() DeviceKind { return KindDMCrypt }
func (d *DMCrypt) Label() string { return "crypt-" + d.backing.Label() }
func (d *DMCrypt) Size() int64 { return d.backing.Size() }
func (d *DMCrypt) Backing() Device { return d.backing }

// Filesystem formats exactly one volume.
type Filesystem struct {
	id     string
	Fstype string
	vol    Device
	mount  *Mount
}

func (f *Filesystem) ID() string { return f.id }
func (f *Filesystem) Volume() Device { return f.vol }
func (f *Filesystem) Mount() *Mount { return f.mount }

// Mount attaches a filesystem to a path.
type Mount struct {
	id   string
	Path string
	fs   *Filesystem
}

func (m *Mount) ID() string { return m.id }
func (m *Mount) Filesystem() *Filesystem { return m.fs }

// childPartitions returns the partitions of a partitionable device.
func childPartitions(d Device) []*Partition {
	switch t := d.(type) {
	case *Disk:
		return t.partitions
	case *Raid:
		return t.partitions
	}
	return nil
}

// consumedBy returns the entity consuming d, or nil. Volume groups are
// never consumed.
func consumedBy(d Device) Entity {
	if c, ok := d.(consumable); ok {
		return c.ConsumedBy()
	}
	return nil
}

// structuralConsumer returns the RAID, volume group or crypt volume
// currently built on d, if any. A plain filesystem does not count.
func structuralConsumer(d Device) Device {
	switch c := consumedBy(d).(type) {
	case *Raid:
		return c
	case *VolGroup:
		return c
	case *DMCrypt:
		return c
	}
	return nil
}
