// Package layout loads declarative storage layouts. A layout document
// is the non-interactive way to reach the same validated model the
// wizard builds screen by screen: it is schema-checked, applied through
// the ordinary model mutators, and rendered as a plan for the external
// actuator.
package layout

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/raharper/subiquity/internal/model"
	"github.com/raharper/subiquity/pkg/sizefmt"
)

var ErrInvalidLayout = errors.New("invalid layout document")

// Document is a parsed layout file.
type Document struct {
	Bootloader string         `yaml:"bootloader"`
	Disks      []DiskSpec     `yaml:"disks"`
	Raids      []RaidSpec     `yaml:"raids"`
	VolGroups  []VolGroupSpec `yaml:"volgroups"`
}

type DiskSpec struct {
	Serial     string          `yaml:"serial"`
	Size       string          `yaml:"size"`
	Partitions []PartitionSpec `yaml:"partitions"`
}

type PartitionSpec struct {
	Size   string `yaml:"size"`
	Flag   string `yaml:"flag"`
	Fstype string `yaml:"fstype"`
	Mount  string `yaml:"mount"`
}

type RaidSpec struct {
	Name       string          `yaml:"name"`
	Level      string          `yaml:"level"`
	Devices    []string        `yaml:"devices"`
	Spares     []string        `yaml:"spares"`
	Partitions []PartitionSpec `yaml:"partitions"`
	Fstype     string          `yaml:"fstype"`
	Mount      string          `yaml:"mount"`
}

type VolGroupSpec struct {
	Name       string       `yaml:"name"`
	Devices    []string     `yaml:"devices"`
	EncryptKey string       `yaml:"encrypt_key"`
	Volumes    []VolumeSpec `yaml:"volumes"`
}

type VolumeSpec struct {
	Name   string `yaml:"name"`
	Size   string `yaml:"size"`
	Fstype string `yaml:"fstype"`
	Mount  string `yaml:"mount"`
}

// Load parses and schema-checks a layout document.
func Load(data []byte) (*Document, error) {
	var loose any
	if err := yaml.Unmarshal(data, &loose); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLayout, err)
	}
	asJSON, err := json.Marshal(loose)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLayout, err)
	}
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(layoutSchema),
		gojsonschema.NewBytesLoader(asJSON),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLayout, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidLayout, strings.Join(msgs, "; "))
	}

	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLayout, err)
	}
	return &doc, nil
}

// Apply builds a fresh model from the document and the plan that would
// realize it. Any constraint violation aborts with the model discarded.
func Apply(doc *Document) (*model.Model, *CreatePlan, error) {
	bl, err := model.ParseBootloader(doc.Bootloader)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidLayout, err)
	}
	a := &applier{m: model.New(bl), plan: &CreatePlan{}}

	for _, spec := range doc.Disks {
		if err := a.disk(spec); err != nil {
			return nil, nil, err
		}
	}
	for _, spec := range doc.Raids {
		if err := a.raid(spec); err != nil {
			return nil, nil, err
		}
	}
	for _, spec := range doc.VolGroups {
		if err := a.volgroup(spec); err != nil {
			return nil, nil, err
		}
	}
	if err := a.flushMounts(); err != nil {
		return nil, nil, err
	}
	return a.m, a.plan, nil
}

type pendingMount struct {
	fs   *model.Filesystem
	path string
}

type applier struct {
	m      *model.Model
	plan   *CreatePlan
	mounts []pendingMount
	step   int
}

func (a *applier) nextID(op string) string {
	a.step++
	return fmt.Sprintf("%02d-%s", a.step, op)
}

func (a *applier) resolve(label string) (model.Device, error) {
	d, ok := a.m.DeviceByLabel(label)
	if !ok {
		return nil, fmt.Errorf("%w: unknown device %q", ErrInvalidLayout, label)
	}
	return d, nil
}

func (a *applier) resolveAll(labels []string) ([]model.Device, error) {
	var out []model.Device
	for _, l := range labels {
		d, err := a.resolve(l)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (a *applier) disk(spec DiskSpec) error {
	size, err := sizefmt.Parse(spec.Size)
	if err != nil {
		return fmt.Errorf("disk %s: %w", spec.Serial, err)
	}
	disk := a.m.AddDisk(spec.Serial, size)
	for _, p := range spec.Partitions {
		if err := a.partition(disk, p); err != nil {
			return fmt.Errorf("disk %s: %w", spec.Serial, err)
		}
	}
	return nil
}

func (a *applier) partition(parent model.Device, spec PartitionSpec) error {
	size, err := sizefmt.Parse(spec.Size)
	if err != nil {
		return err
	}
	part, err := a.m.AddPartition(parent, size, spec.Flag)
	if err != nil {
		return err
	}
	a.plan.add(a.nextID("partition"),
		fmt.Sprintf("create %s partition %d on %s", spec.Size, part.Number, parent.Label()),
		fmt.Sprintf("sgdisk --new=%d:0:+%s /dev/%s", part.Number, spec.Size, parent.Label()),
		true)
	return a.format(part, spec.Fstype, spec.Mount)
}

func (a *applier) raid(spec RaidSpec) error {
	devices, err := a.resolveAll(spec.Devices)
	if err != nil {
		return err
	}
	spares, err := a.resolveAll(spec.Spares)
	if err != nil {
		return err
	}
	raid, err := a.m.AddRaid(spec.Name, spec.Level, devices, spares)
	if err != nil {
		return fmt.Errorf("raid %s: %w", spec.Name, err)
	}
	a.plan.add(a.nextID("raid"),
		fmt.Sprintf("assemble %s array %s from %d devices", spec.Level, spec.Name, len(devices)),
		fmt.Sprintf("mdadm --create /dev/md/%s --level=%s --raid-devices=%d %s",
			spec.Name, spec.Level, len(devices), devPaths(devices)),
		true)
	for _, p := range spec.Partitions {
		if err := a.partition(raid, p); err != nil {
			return fmt.Errorf("raid %s: %w", spec.Name, err)
		}
	}
	return a.format(raid, spec.Fstype, spec.Mount)
}

func (a *applier) volgroup(spec VolGroupSpec) error {
	devices, err := a.resolveAll(spec.Devices)
	if err != nil {
		return err
	}
	if spec.EncryptKey != "" {
		for i, d := range devices {
			dm, err := a.m.AddDMCrypt(d, spec.EncryptKey)
			if err != nil {
				return fmt.Errorf("volgroup %s: %w", spec.Name, err)
			}
			a.plan.add(a.nextID("crypt"),
				fmt.Sprintf("encrypt %s", d.Label()),
				fmt.Sprintf("cryptsetup luksFormat /dev/%s", d.Label()),
				true)
			devices[i] = dm
		}
	}
	vg, err := a.m.AddVolGroup(spec.Name, devices)
	if err != nil {
		return fmt.Errorf("volgroup %s: %w", spec.Name, err)
	}
	a.plan.add(a.nextID("volgroup"),
		fmt.Sprintf("create volume group %s", spec.Name),
		fmt.Sprintf("vgcreate %s %s", spec.Name, devPaths(devices)),
		true)
	for _, v := range spec.Volumes {
		size, err := sizefmt.Parse(v.Size)
		if err != nil {
			return fmt.Errorf("volgroup %s: %w", spec.Name, err)
		}
		lv, err := a.m.AddLogicalVolume(vg, v.Name, size)
		if err != nil {
			return fmt.Errorf("volgroup %s: %w", spec.Name, err)
		}
		a.plan.add(a.nextID("lv"),
			fmt.Sprintf("create logical volume %s (%s)", lv.Label(), v.Size),
			fmt.Sprintf("lvcreate -L %s -n %s %s", v.Size, v.Name, spec.Name),
			false)
		if err := a.format(lv, v.Fstype, v.Mount); err != nil {
			return fmt.Errorf("volgroup %s: %w", spec.Name, err)
		}
	}
	return nil
}

func (a *applier) format(d model.Device, fstype, mount string) error {
	if fstype == "" {
		return nil
	}
	fs, err := a.m.AddFilesystem(d, fstype)
	if err != nil {
		return err
	}
	a.plan.add(a.nextID("format"),
		fmt.Sprintf("format %s as %s", d.Label(), fstype),
		fmt.Sprintf("mkfs.%s /dev/%s", fstype, d.Label()),
		true)
	if mount != "" {
		a.mounts = append(a.mounts, pendingMount{fs: fs, path: mount})
	}
	return nil
}

// flushMounts commits mounts shallowest path first, so "/" precedes
// "/home" in both the model's log and the plan.
func (a *applier) flushMounts() error {
	sort.SliceStable(a.mounts, func(i, j int) bool {
		di := strings.Count(a.mounts[i].path, "/")
		dj := strings.Count(a.mounts[j].path, "/")
		if di != dj {
			return di < dj
		}
		return a.mounts[i].path < a.mounts[j].path
	})
	for _, pm := range a.mounts {
		if _, err := a.m.AddMount(pm.fs, pm.path); err != nil {
			return fmt.Errorf("mount %s: %w", pm.path, err)
		}
		dev := pm.fs.Volume().Label()
		a.plan.add(a.nextID("mount"),
			fmt.Sprintf("mount %s at %s", dev, pm.path),
			fmt.Sprintf("mount /dev/%s /target%s", dev, pm.path),
			false)
	}
	return nil
}

func devPaths(devices []model.Device) string {
	paths := make([]string, len(devices))
	for i, d := range devices {
		paths[i] = "/dev/" + d.Label()
	}
	return strings.Join(paths, " ")
}
