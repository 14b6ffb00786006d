// Package model is the in-memory storage configuration graph behind the
// installer wizard: disks, partitions, RAID arrays, volume groups,
// logical volumes, crypt volumes, filesystems and mounts, plus the
// per-kind action legality engine the wizard polls to gate its controls.
//
// The graph is private state owned by one installation session. All
// mutators are synchronous and validate before committing: a constraint
// failure returns a typed error and leaves the graph unchanged.
package model

import (
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/raharper/subiquity/pkg/sizefmt"
	"github.com/raharper/subiquity/pkg/validate"
)

// Model holds the device graph for one configuration session.
type Model struct {
	bootloader Bootloader
	entities   []Entity // ordered action log
}

func New(bootloader Bootloader) *Model {
	return &Model{bootloader: bootloader}
}

func (m *Model) Bootloader() Bootloader { return m.bootloader }

// Entities returns the action log in creation order.
func (m *Model) Entities() []Entity {
	return slices.Clone(m.entities)
}

// Devices returns every device in the log, in creation order.
func (m *Model) Devices() []Device {
	var out []Device
	for _, e := range m.entities {
		if d, ok := e.(Device); ok {
			out = append(out, d)
		}
	}
	return out
}

func (m *Model) DeviceByID(id string) (Device, bool) {
	for _, e := range m.entities {
		if d, ok := e.(Device); ok && d.ID() == id {
			return d, true
		}
	}
	return nil, false
}

func (m *Model) DeviceByLabel(label string) (Device, bool) {
	for _, e := range m.entities {
		if d, ok := e.(Device); ok && d.Label() == label {
			return d, true
		}
	}
	return nil, false
}

// AddDisk records a physical disk. Disks enter the model only through
// discovery (or tests); they are never created by wizard screens.
func (m *Model) AddDisk(serial string, size int64) *Disk {
	d := &Disk{
		volume:     newVolume(),
		Serial:     serial,
		SizeBytes:  size,
		Bootloader: m.bootloader,
	}
	m.entities = append(m.entities, d)
	return d
}

// AddPartition carves a new partition from parent's free capacity.
// Only disks and RAID arrays can be partitioned.
func (m *Model) AddPartition(parent Device, size int64, flag string) (*Partition, error) {
	switch parent.(type) {
	case *Disk, *Raid:
	default:
		return nil, fmt.Errorf("%w: cannot partition a %s", ErrActionNotApplicable, parent.Kind())
	}
	if flag != "" && !bootFlags[flag] {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFlag, flag)
	}
	if consumedBy(parent) != nil {
		return nil, fmt.Errorf("%w: %s", ErrDeviceConsumed, parent.Label())
	}
	if size <= 0 || size > m.FreeForPartitions(parent) {
		return nil, fmt.Errorf("%w: %s on %s", ErrCapacityExceeded, sizefmt.Format(size), parent.Label())
	}
	p := &Partition{
		volume:    newVolume(),
		Number:    len(childPartitions(parent)) + 1,
		SizeBytes: size,
		Flag:      flag,
		parent:    parent,
	}
	switch t := parent.(type) {
	case *Disk:
		t.partitions = append(t.partitions, p)
	case *Raid:
		t.partitions = append(t.partitions, p)
	}
	m.entities = append(m.entities, p)
	return p, nil
}

// checkMemberFree verifies that d can be folded into a RAID, volume
// group or crypt volume right now.
func checkMemberFree(d Device) error {
	switch d.(type) {
	case *Disk, *Partition, *Raid, *DMCrypt:
	default:
		return fmt.Errorf("%w: a %s cannot be a member device", ErrActionNotApplicable, d.Kind())
	}
	if consumedBy(d) != nil {
		return fmt.Errorf("%w: %s", ErrDeviceConsumed, d.Label())
	}
	if len(childPartitions(d)) > 0 {
		return fmt.Errorf("%w: %s is partitioned", ErrDeviceConsumed, d.Label())
	}
	return nil
}

// AddRaid composes unconsumed member devices into an array.
func (m *Model) AddRaid(name, level string, devices, spares []Device) (*Raid, error) {
	if err := validate.DeviceName(name); err != nil {
		return nil, fmt.Errorf("%w: %q", err, name)
	}
	minDevices, ok := raidMinDevices[level]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRaidLevel, level)
	}
	if len(devices) < minDevices {
		return nil, fmt.Errorf("%w: %s needs at least %d", ErrTooFewDevices, level, minDevices)
	}
	members := append(append([]Device{}, devices...), spares...)
	for i, d := range members {
		if slices.Contains(members[:i], d) {
			return nil, fmt.Errorf("%w: %s listed twice", ErrDeviceConsumed, d.Label())
		}
		if err := checkMemberFree(d); err != nil {
			return nil, err
		}
	}
	r := &Raid{
		volume:  newVolume(),
		Name:    name,
		Level:   level,
		devices: slices.Clone(devices),
		spares:  slices.Clone(spares),
	}
	for _, d := range members {
		d.(consumable).setConsumer(r)
	}
	m.entities = append(m.entities, r)
	return r, nil
}

// AddVolGroup pools unconsumed member devices into a volume group.
func (m *Model) AddVolGroup(name string, devices []Device) (*VolGroup, error) {
	if err := validate.DeviceName(name); err != nil {
		return nil, fmt.Errorf("%w: %q", err, name)
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("%w: volume group needs at least 1", ErrTooFewDevices)
	}
	for i, d := range devices {
		if slices.Contains(devices[:i], d) {
			return nil, fmt.Errorf("%w: %s listed twice", ErrDeviceConsumed, d.Label())
		}
		if err := checkMemberFree(d); err != nil {
			return nil, err
		}
	}
	vg := &VolGroup{
		id:      uuid.NewString(),
		Name:    name,
		devices: slices.Clone(devices),
	}
	for _, d := range devices {
		d.(consumable).setConsumer(vg)
	}
	m.entities = append(m.entities, vg)
	return vg, nil
}

// AddLogicalVolume carves a logical volume from vg's free capacity.
func (m *Model) AddLogicalVolume(vg *VolGroup, name string, size int64) (*LogicalVolume, error) {
	if err := validate.DeviceName(name); err != nil {
		return nil, fmt.Errorf("%w: %q", err, name)
	}
	if size <= 0 || size > m.FreeForPartitions(vg) {
		return nil, fmt.Errorf("%w: %s on %s", ErrCapacityExceeded, sizefmt.Format(size), vg.Name)
	}
	lv := &LogicalVolume{
		volume:    newVolume(),
		Name:      name,
		SizeBytes: size,
		vg:        vg,
	}
	vg.lvs = append(vg.lvs, lv)
	m.entities = append(m.entities, lv)
	return lv, nil
}

// AddDMCrypt wraps an unconsumed device in an encryption layer.
func (m *Model) AddDMCrypt(device Device, key string) (*DMCrypt, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	if err := checkMemberFree(device); err != nil {
		return nil, err
	}
	dm := &DMCrypt{volume: newVolume(), key: key, backing: device}
	device.(consumable).setConsumer(dm)
	m.entities = append(m.entities, dm)
	return dm, nil
}

// AddFilesystem formats an unconsumed leaf device.
func (m *Model) AddFilesystem(device Device, fstype string) (*Filesystem, error) {
	if fstype == "" {
		return nil, ErrBadFstype
	}
	if _, ok := device.(*VolGroup); ok {
		return nil, fmt.Errorf("%w: cannot format a %s", ErrActionNotApplicable, device.Kind())
	}
	if consumedBy(device) != nil {
		return nil, fmt.Errorf("%w: %s", ErrDeviceConsumed, device.Label())
	}
	if len(childPartitions(device)) > 0 {
		return nil, fmt.Errorf("%w: %s is partitioned", ErrDeviceConsumed, device.Label())
	}
	fs := &Filesystem{id: uuid.NewString(), Fstype: fstype, vol: device}
	device.(consumable).setConsumer(fs)
	m.entities = append(m.entities, fs)
	return fs, nil
}

// AddMount attaches a filesystem to a path. A filesystem has at most
// one mount.
func (m *Model) AddMount(fs *Filesystem, path string) (*Mount, error) {
	if err := validate.Mountpoint(path); err != nil {
		return nil, fmt.Errorf("%w: %q", err, path)
	}
	if fs.mount != nil {
		return nil, fmt.Errorf("%w: at %s", ErrAlreadyMounted, fs.mount.Path)
	}
	mo := &Mount{id: uuid.NewString(), Path: path, fs: fs}
	fs.mount = mo
	m.entities = append(m.entities, mo)
	return mo, nil
}

// RemoveMount detaches a mount from its filesystem.
func (m *Model) RemoveMount(mo *Mount) {
	if mo.fs != nil && mo.fs.mount == mo {
		mo.fs.mount = nil
	}
	m.dropEntity(mo)
}

// RemoveFilesystem unformats a device. Fails while the filesystem is
// mounted.
func (m *Model) RemoveFilesystem(fs *Filesystem) error {
	if fs.mount != nil {
		return fmt.Errorf("%w: mounted at %s", ErrActionNotPossible, fs.mount.Path)
	}
	if c, ok := fs.vol.(consumable); ok && c.ConsumedBy() == Entity(fs) {
		c.setConsumer(nil)
	}
	m.dropEntity(fs)
	return nil
}

// memberRemovable reports whether member can leave container right now.
// Spares can always leave. An active RAID member can go only while the
// array stays above its level's minimum; a volume group keeps at least
// one member.
func memberRemovable(container Device, member Device) (bool, string) {
	switch c := container.(type) {
	case *Raid:
		if slices.Contains(c.spares, member) {
			return true, ""
		}
		if !slices.Contains(c.devices, member) {
			return false, fmt.Sprintf("%s is not part of %s", member.Label(), c.Name)
		}
		if len(c.devices) <= raidMinDevices[c.Level] {
			return false, fmt.Sprintf("%s needs at least %d members", c.Name, raidMinDevices[c.Level])
		}
		return true, ""
	case *VolGroup:
		if !slices.Contains(c.devices, member) {
			return false, fmt.Sprintf("%s is not part of %s", member.Label(), c.Name)
		}
		if len(c.devices) < 2 {
			return false, fmt.Sprintf("%s is the last member of %s", member.Label(), c.Name)
		}
		return true, ""
	}
	return false, fmt.Sprintf("a %s has no members", container.Kind())
}

// RemoveMember takes a member device out of its RAID or volume group
// and clears the consumed-by back-reference. The device stays in the
// model, free for other use.
func (m *Model) RemoveMember(container Device, member Device) error {
	switch container.(type) {
	case *Raid, *VolGroup:
	default:
		return fmt.Errorf("%w: a %s has no members", ErrActionNotApplicable, container.Kind())
	}
	if !slices.Contains(containerMembers(container), member) {
		return fmt.Errorf("%w: %s of %s", ErrNotMember, member.Label(), container.Label())
	}
	if ok, reason := memberRemovable(container, member); !ok {
		return fmt.Errorf("%w: %s", ErrLastMember, reason)
	}
	switch c := container.(type) {
	case *Raid:
		c.devices = slices.DeleteFunc(c.devices, func(d Device) bool { return d == member })
		c.spares = slices.DeleteFunc(c.spares, func(d Device) bool { return d == member })
	case *VolGroup:
		c.devices = slices.DeleteFunc(c.devices, func(d Device) bool { return d == member })
	}
	member.(consumable).setConsumer(nil)
	return nil
}

func containerMembers(container Device) []Device {
	switch c := container.(type) {
	case *Raid:
		return append(append([]Device{}, c.devices...), c.spares...)
	case *VolGroup:
		return c.devices
	}
	return nil
}

// MakeBoot marks a device as the boot device for the session's
// bootloader mode.
func (m *Model) MakeBoot(d Device) error {
	if err := m.CheckAction(d, ActionMakeBoot); err != nil {
		return err
	}
	switch t := d.(type) {
	case *Disk:
		t.Boot = true
	case *Raid:
		t.Boot = true
	case *Partition:
		t.Flag = m.bootloader.bootFlag()
	}
	return nil
}

// Delete removes a deletable device and its full dependent closure in
// one transaction. The closure is collected before anything is severed,
// so a blocked delete changes nothing.
func (m *Model) Delete(d Device) error {
	if err := m.CheckAction(d, ActionDelete); err != nil {
		return err
	}
	for _, e := range m.closure(d) {
		m.drop(e)
	}
	return nil
}

// closure collects d and every entity that depends on it, dependents
// first.
func (m *Model) closure(d Device) []Entity {
	var out []Entity
	var visit func(Device)
	visit = func(dev Device) {
		for _, p := range childPartitions(dev) {
			visit(p)
		}
		if vg, ok := dev.(*VolGroup); ok {
			for _, lv := range vg.lvs {
				visit(lv)
			}
		}
		if fs, ok := consumedBy(dev).(*Filesystem); ok {
			if fs.mount != nil {
				out = append(out, fs.mount)
			}
			out = append(out, fs)
		}
		out = append(out, dev)
	}
	visit(d)
	return out
}

// drop removes one entity from the log and severs its edges.
func (m *Model) drop(e Entity) {
	switch t := e.(type) {
	case *Mount:
		if t.fs != nil && t.fs.mount == t {
			t.fs.mount = nil
		}
	case *Filesystem:
		if c, ok := t.vol.(consumable); ok && c.ConsumedBy() == Entity(t) {
			c.setConsumer(nil)
		}
	case *Partition:
		switch p := t.parent.(type) {
		case *Disk:
			p.partitions = slices.DeleteFunc(p.partitions, func(x *Partition) bool { return x == t })
		case *Raid:
			p.partitions = slices.DeleteFunc(p.partitions, func(x *Partition) bool { return x == t })
		}
	case *Raid:
		for _, d := range containerMembers(t) {
			d.(consumable).setConsumer(nil)
		}
	case *VolGroup:
		for _, d := range t.devices {
			d.(consumable).setConsumer(nil)
		}
	case *LogicalVolume:
		t.vg.lvs = slices.DeleteFunc(t.vg.lvs, func(x *LogicalVolume) bool { return x == t })
	case *DMCrypt:
		if c, ok := t.backing.(consumable); ok && c.ConsumedBy() == Entity(t) {
			c.setConsumer(nil)
		}
	}
	m.dropEntity(e)
}

func (m *Model) dropEntity(e Entity) {
	m.entities = slices.DeleteFunc(m.entities, func(x Entity) bool { return x == e })
}

// FreeForPartitions is a partitionable device's declared capacity minus
// the sum of its current children's sizes. Zero for anything that
// cannot host partitions or logical volumes.
func (m *Model) FreeForPartitions(d Device) int64 {
	switch t := d.(type) {
	case *Disk:
		free := t.SizeBytes
		for _, p := range t.partitions {
			free -= p.SizeBytes
		}
		return free
	case *Raid:
		free := t.Size()
		for _, p := range t.partitions {
			free -= p.SizeBytes
		}
		return free
	case *VolGroup:
		free := t.Size()
		for _, lv := range t.lvs {
			free -= lv.SizeBytes
		}
		return free
	}
	return 0
}

// MountPoints maps each mount path to the label of the device backing
// it. Form validation uses this to flag duplicate mounts.
func (m *Model) MountPoints() map[string]string {
	out := map[string]string{}
	for _, e := range m.entities {
		if mo, ok := e.(*Mount); ok {
			out[mo.Path] = mo.fs.vol.Label()
		}
	}
	return out
}
