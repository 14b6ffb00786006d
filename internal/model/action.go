package model

// DeviceAction enumerates the management operations wizard screens can
// offer on a device. Whether an action applies to a device at all is a
// static property of its kind; whether it is currently possible depends
// on graph state. See SupportedActions and ActionPossible.
type DeviceAction int

const (
	ActionInfo DeviceAction = iota
	ActionEdit
	ActionPartition
	ActionCreateLV
	ActionFormat
	ActionRemove
	ActionDelete
	ActionMakeBoot
)

var actionNames = [...]string{
	ActionInfo:      "info",
	ActionEdit:      "edit",
	ActionPartition: "partition",
	ActionCreateLV:  "create-lv",
	ActionFormat:    "format",
	ActionRemove:    "remove",
	ActionDelete:    "delete",
	ActionMakeBoot:  "make-boot",
}

func (a DeviceAction) String() string {
	if int(a) < len(actionNames) {
		return actionNames[a]
	}
	return "unknown"
}

// ParseAction maps the wire name of an action back to its value.
func ParseAction(s string) (DeviceAction, bool) {
	for i, name := range actionNames {
		if name == s {
			return DeviceAction(i), true
		}
	}
	return 0, false
}
