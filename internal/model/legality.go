package model

import (
	"fmt"
	"slices"
)

// SupportedActions returns the actions structurally applicable to d's
// kind. An action outside this set is not "currently disallowed", it
// does not exist for the type: a disk is never deletable, a volume
// group is never formattable. MAKE_BOOT is absent from every set while
// the bootloader mode is NONE.
func (m *Model) SupportedActions(d Device) []DeviceAction {
	var acts []DeviceAction
	switch d.Kind() {
	case KindDisk:
		acts = []DeviceAction{ActionInfo, ActionPartition, ActionFormat, ActionRemove, ActionMakeBoot}
	case KindPartition:
		acts = []DeviceAction{ActionEdit, ActionRemove, ActionDelete, ActionMakeBoot}
	case KindRaid:
		acts = []DeviceAction{ActionEdit, ActionPartition, ActionFormat, ActionRemove, ActionDelete, ActionMakeBoot}
	case KindVolGroup:
		acts = []DeviceAction{ActionEdit, ActionCreateLV, ActionDelete}
	case KindLogicalVolume:
		acts = []DeviceAction{ActionEdit, ActionDelete}
	case KindDMCrypt:
		acts = []DeviceAction{ActionFormat, ActionDelete}
	}
	if m.bootloader == BootloaderNone {
		acts = slices.DeleteFunc(acts, func(a DeviceAction) bool { return a == ActionMakeBoot })
	}
	return acts
}

func (m *Model) ActionSupported(d Device, a DeviceAction) bool {
	return slices.Contains(m.SupportedActions(d), a)
}

// ActionPossible reports current-state eligibility of a supported
// action, with a human-readable reason when it is blocked. It never
// fails and has no side effects; the wizard layer polls it freely.
func (m *Model) ActionPossible(d Device, a DeviceAction) (bool, string) {
	if !m.ActionSupported(d, a) {
		return false, fmt.Sprintf("%s is not applicable to a %s", a, d.Kind())
	}
	switch a {
	case ActionInfo, ActionMakeBoot:
		return true, ""

	case ActionPartition, ActionCreateLV:
		if c := consumedBy(d); c != nil {
			return false, fmt.Sprintf("%s is in use", d.Label())
		}
		if m.FreeForPartitions(d) <= 0 {
			return false, fmt.Sprintf("%s has no free space", d.Label())
		}
		return true, ""

	case ActionFormat:
		if len(childPartitions(d)) > 0 {
			return false, fmt.Sprintf("%s is partitioned", d.Label())
		}
		if consumedBy(d) != nil {
			return false, fmt.Sprintf("%s is in use", d.Label())
		}
		return true, ""

	case ActionEdit:
		switch c := consumedBy(d).(type) {
		case *Raid:
			return false, fmt.Sprintf("%s is part of %s", d.Label(), c.Name)
		case *VolGroup:
			return false, fmt.Sprintf("%s is part of %s", d.Label(), c.Name)
		}
		if len(childPartitions(d)) > 0 {
			return false, fmt.Sprintf("%s is partitioned", d.Label())
		}
		return true, ""

	case ActionRemove:
		c := structuralConsumer(d)
		switch c.(type) {
		case *Raid, *VolGroup:
			return memberRemovable(c, d)
		}
		return false, fmt.Sprintf("%s is not part of a RAID or volume group", d.Label())

	case ActionDelete:
		if reason := m.deleteBlocked(d); reason != "" {
			return false, reason
		}
		return true, ""
	}
	return false, ""
}

// CheckAction folds both legality tiers into one error: an action the
// kind does not support yields ErrActionNotApplicable, a supported but
// currently blocked action yields ErrActionNotPossible.
func (m *Model) CheckAction(d Device, a DeviceAction) error {
	if !m.ActionSupported(d, a) {
		return fmt.Errorf("%w: %s on %s", ErrActionNotApplicable, a, d.Kind())
	}
	if ok, reason := m.ActionPossible(d, a); !ok {
		return fmt.Errorf("%w: %s", ErrActionNotPossible, reason)
	}
	return nil
}

// deleteBlocked returns why d cannot be deleted right now, or "".
// Deletion is blocked while the device is folded into a RAID, volume
// group or crypt volume, while any filesystem in its dependent closure
// is mounted, while any descendant is consumed by a structure outside
// the closure, and always for boot-flagged partitions.
func (m *Model) deleteBlocked(d Device) string {
	if p, ok := d.(*Partition); ok && p.Flag != "" {
		return fmt.Sprintf("%s carries the %s flag", p.Label(), p.Flag)
	}
	if c := structuralConsumer(d); c != nil {
		return fmt.Sprintf("%s is part of %s", d.Label(), c.Label())
	}
	for _, e := range m.closure(d) {
		if mo, ok := e.(*Mount); ok {
			return fmt.Sprintf("%s is mounted at %s", mo.fs.vol.Label(), mo.Path)
		}
		dev, ok := e.(Device)
		if !ok || dev == d {
			continue
		}
		if c := structuralConsumer(dev); c != nil {
			return fmt.Sprintf("%s is in use by %s", dev.Label(), c.Label())
		}
	}
	return ""
}
