package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/raharper/subiquity/internal/layout"
	"github.com/raharper/subiquity/internal/model"
	"github.com/raharper/subiquity/pkg/httpx"
	"github.com/raharper/subiquity/pkg/sizefmt"
	"github.com/raharper/subiquity/pkg/validate"
)

type actionView struct {
	Action   string `json:"action"`
	Possible bool   `json:"possible"`
	Reason   string `json:"reason,omitempty"`
}

type deviceView struct {
	ID                string       `json:"id"`
	Type              string       `json:"type"`
	Label             string       `json:"label"`
	Size              int64        `json:"size"`
	SizeHuman         string       `json:"size_human"`
	FreeForPartitions int64        `json:"free_for_partitions,omitempty"`
	Annotations       []string     `json:"annotations,omitempty"`
	Actions           []actionView `json:"actions"`
}

func (a *api) viewOf(d model.Device) deviceView {
	v := deviceView{
		ID:                d.ID(),
		Type:              d.Kind().String(),
		Label:             d.Label(),
		Size:              d.Size(),
		SizeHuman:         sizefmt.Format(d.Size()),
		FreeForPartitions: a.m.FreeForPartitions(d),
	}
	if vg, ok := d.(*model.VolGroup); ok {
		v.Annotations = vg.Annotations()
	}
	for _, act := range a.m.SupportedActions(d) {
		possible, reason := a.m.ActionPossible(d, act)
		v.Actions = append(v.Actions, actionView{Action: act.String(), Possible: possible, Reason: reason})
	}
	return v
}

// findDevice resolves a path parameter as a device ID, falling back to
// the human-readable label.
func (a *api) findDevice(r *http.Request) (model.Device, bool) {
	key := chi.URLParam(r, "id")
	if d, ok := a.m.DeviceByID(key); ok {
		return d, true
	}
	return a.m.DeviceByLabel(key)
}

func (a *api) findFilesystem(id string) (*model.Filesystem, bool) {
	for _, e := range a.m.Entities() {
		if fs, ok := e.(*model.Filesystem); ok && fs.ID() == id {
			return fs, true
		}
	}
	return nil, false
}

func (a *api) findMount(id string) (*model.Mount, bool) {
	for _, e := range a.m.Entities() {
		if mo, ok := e.(*model.Mount); ok && mo.ID() == id {
			return mo, true
		}
	}
	return nil, false
}

// resolveRefs maps request device references (IDs or labels) to devices.
func (a *api) resolveRefs(refs []string) ([]model.Device, error) {
	var out []model.Device
	for _, ref := range refs {
		d, ok := a.m.DeviceByID(ref)
		if !ok {
			d, ok = a.m.DeviceByLabel(ref)
		}
		if !ok {
			return nil, errors.New("unknown device " + ref)
		}
		out = append(out, d)
	}
	return out, nil
}

func writeModelError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrActionNotApplicable),
		errors.Is(err, model.ErrCapacityExceeded),
		errors.Is(err, model.ErrUnknownFlag),
		errors.Is(err, model.ErrUnknownRaidLevel),
		errors.Is(err, model.ErrTooFewDevices),
		errors.Is(err, model.ErrBadFstype),
		errors.Is(err, model.ErrEmptyKey),
		errors.Is(err, validate.ErrBadName),
		errors.Is(err, validate.ErrBadMount):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrActionNotPossible),
		errors.Is(err, model.ErrDeviceConsumed),
		errors.Is(err, model.ErrAlreadyMounted),
		errors.Is(err, model.ErrLastMember),
		errors.Is(err, model.ErrNotMember):
		httpx.WriteError(w, http.StatusConflict, err.Error())
	default:
		httpx.WriteError(w, http.StatusInternalServerError, err.Error())
	}
}

func (a *api) overview(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()
	httpx.WriteJSON(w, map[string]any{
		"bootloader": a.m.Bootloader().String(),
		"devices":    len(a.m.Devices()),
		"mounts":     len(a.m.MountPoints()),
	})
}

func (a *api) listDevices(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()
	views := []deviceView{}
	for _, d := range a.m.Devices() {
		views = append(views, a.viewOf(d))
	}
	modelDevices.Set(float64(len(views)))
	httpx.WriteJSON(w, map[string]any{"devices": views})
}

func (a *api) getDevice(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()
	d, ok := a.findDevice(r)
	if !ok {
		httpx.WriteError(w, http.StatusNotFound, "device not found")
		return
	}
	httpx.WriteJSON(w, a.viewOf(d))
}

func (a *api) deviceActions(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()
	d, ok := a.findDevice(r)
	if !ok {
		httpx.WriteError(w, http.StatusNotFound, "device not found")
		return
	}
	views := []actionView{}
	for _, act := range a.m.SupportedActions(d) {
		possible, reason := a.m.ActionPossible(d, act)
		views = append(views, actionView{Action: act.String(), Possible: possible, Reason: reason})
	}
	httpx.WriteJSON(w, map[string]any{"actions": views})
}

func (a *api) createPartition(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Size string `json:"size"`
		Flag string `json:"flag"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	d, ok := a.findDevice(r)
	if !ok {
		httpx.WriteError(w, http.StatusNotFound, "device not found")
		return
	}
	size, err := sizefmt.Parse(body.Size)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := a.m.AddPartition(d, size, body.Flag)
	observeMutation("partition", err)
	if err != nil {
		writeModelError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	httpx.WriteJSON(w, a.viewOf(p))
}

func (a *api) createRaid(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name    string   `json:"name"`
		Level   string   `json:"level"`
		Devices []string `json:"devices"`
		Spares  []string `json:"spares"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	devices, err := a.resolveRefs(body.Devices)
	if err != nil {
		httpx.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	spares, err := a.resolveRefs(body.Spares)
	if err != nil {
		httpx.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	raid, err := a.m.AddRaid(body.Name, body.Level, devices, spares)
	observeMutation("raid", err)
	if err != nil {
		writeModelError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	httpx.WriteJSON(w, a.viewOf(raid))
}

func (a *api) createVolGroup(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name    string   `json:"name"`
		Devices []string `json:"devices"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	devices, err := a.resolveRefs(body.Devices)
	if err != nil {
		httpx.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	vg, err := a.m.AddVolGroup(body.Name, devices)
	observeMutation("volgroup", err)
	if err != nil {
		writeModelError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	httpx.WriteJSON(w, a.viewOf(vg))
}

func (a *api) createLogicalVolume(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
		Size string `json:"size"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	d, ok := a.findDevice(r)
	if !ok {
		httpx.WriteError(w, http.StatusNotFound, "device not found")
		return
	}
	vg, ok := d.(*model.VolGroup)
	if !ok {
		httpx.WriteError(w, http.StatusBadRequest, "device is not a volume group")
		return
	}
	size, err := sizefmt.Parse(body.Size)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	lv, err := a.m.AddLogicalVolume(vg, body.Name, size)
	observeMutation("logicalvolume", err)
	if err != nil {
		writeModelError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	httpx.WriteJSON(w, a.viewOf(lv))
}

func (a *api) createDMCrypt(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Device string `json:"device"`
		Key    string `json:"key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	devices, err := a.resolveRefs([]string{body.Device})
	if err != nil {
		httpx.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	dm, err := a.m.AddDMCrypt(devices[0], body.Key)
	observeMutation("dmcrypt", err)
	if err != nil {
		writeModelError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	httpx.WriteJSON(w, a.viewOf(dm))
}

func (a *api) createFilesystem(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Fstype string `json:"fstype"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	d, ok := a.findDevice(r)
	if !ok {
		httpx.WriteError(w, http.StatusNotFound, "device not found")
		return
	}
	fs, err := a.m.AddFilesystem(d, body.Fstype)
	observeMutation("format", err)
	if err != nil {
		writeModelError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	httpx.WriteJSON(w, map[string]any{"id": fs.ID(), "fstype": fs.Fstype, "device": fs.Volume().Label()})
}

func (a *api) createMount(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	fs, ok := a.findFilesystem(chi.URLParam(r, "id"))
	if !ok {
		httpx.WriteError(w, http.StatusNotFound, "filesystem not found")
		return
	}
	mo, err := a.m.AddMount(fs, body.Path)
	observeMutation("mount", err)
	if err != nil {
		writeModelError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	httpx.WriteJSON(w, map[string]any{"id": mo.ID(), "path": mo.Path, "device": fs.Volume().Label()})
}

func (a *api) deleteFilesystem(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fs, ok := a.findFilesystem(chi.URLParam(r, "id"))
	if !ok {
		httpx.WriteError(w, http.StatusNotFound, "filesystem not found")
		return
	}
	err := a.m.RemoveFilesystem(fs)
	observeMutation("unformat", err)
	if err != nil {
		writeModelError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) deleteMount(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()
	mo, ok := a.findMount(chi.URLParam(r, "id"))
	if !ok {
		httpx.WriteError(w, http.StatusNotFound, "mount not found")
		return
	}
	a.m.RemoveMount(mo)
	observeMutation("unmount", nil)
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) makeBoot(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()
	d, ok := a.findDevice(r)
	if !ok {
		httpx.WriteError(w, http.StatusNotFound, "device not found")
		return
	}
	err := a.m.MakeBoot(d)
	observeMutation("make-boot", err)
	if err != nil {
		writeModelError(w, err)
		return
	}
	httpx.WriteJSON(w, a.viewOf(d))
}

func (a *api) removeMember(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Member string `json:"member"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	d, ok := a.findDevice(r)
	if !ok {
		httpx.WriteError(w, http.StatusNotFound, "device not found")
		return
	}
	members, err := a.resolveRefs([]string{body.Member})
	if err != nil {
		httpx.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	err = a.m.RemoveMember(d, members[0])
	observeMutation("remove-member", err)
	if err != nil {
		writeModelError(w, err)
		return
	}
	httpx.WriteJSON(w, a.viewOf(d))
}

func (a *api) deleteDevice(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()
	d, ok := a.findDevice(r)
	if !ok {
		httpx.WriteError(w, http.StatusNotFound, "device not found")
		return
	}
	err := a.m.Delete(d)
	observeMutation("delete", err)
	if err != nil {
		writeModelError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) mountPoints(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()
	httpx.WriteJSON(w, map[string]any{"mountpoints": a.m.MountPoints()})
}

// planLayout validates a YAML layout document and returns the plan it
// would produce. The server's live model is not touched.
func (a *api) planLayout(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "cannot read body")
		return
	}
	doc, err := layout.Load(data)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	_, plan, err := layout.Apply(doc)
	if err != nil {
		if errors.Is(err, layout.ErrInvalidLayout) {
			httpx.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeModelError(w, err)
		return
	}
	httpx.WriteJSON(w, plan)
}
