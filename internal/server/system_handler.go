package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/raharper/subiquity/pkg/httpx"
)

// SystemInfo summarizes the machine the installer is running on.
type SystemInfo struct {
	Hostname     string    `json:"hostname"`
	Platform     string    `json:"platform"`
	Architecture string    `json:"architecture"`
	Kernel       string    `json:"kernel"`
	Uptime       int64     `json:"uptime"`
	BootTime     time.Time `json:"boot_time"`
	CPU          CPUInfo   `json:"cpu"`
	Memory       MemInfo   `json:"memory"`
}

type CPUInfo struct {
	Model   string  `json:"model"`
	Cores   int     `json:"cores"`
	Threads int     `json:"threads"`
	Speed   float64 `json:"speed_mhz"`
}

type MemInfo struct {
	Total     uint64  `json:"total"`
	Available uint64  `json:"available"`
	Used      uint64  `json:"used"`
	Percent   float64 `json:"percent"`
}

func handleSystemInfo(w http.ResponseWriter, r *http.Request) {
	info := SystemInfo{
		Platform:     runtime.GOOS,
		Architecture: runtime.GOARCH,
	}

	if hostInfo, err := host.InfoWithContext(r.Context()); err == nil {
		info.Hostname = hostInfo.Hostname
		info.Platform = hostInfo.Platform
		info.Kernel = hostInfo.KernelVersion
		info.Uptime = int64(hostInfo.Uptime)
		info.BootTime = time.Unix(int64(hostInfo.BootTime), 0)
	}

	if cpus, err := cpu.InfoWithContext(r.Context()); err == nil && len(cpus) > 0 {
		info.CPU = CPUInfo{
			Model:   cpus[0].ModelName,
			Cores:   int(cpus[0].Cores),
			Threads: len(cpus),
			Speed:   cpus[0].Mhz,
		}
	}

	if vm, err := mem.VirtualMemoryWithContext(r.Context()); err == nil {
		info.Memory = MemInfo{
			Total:     vm.Total,
			Available: vm.Available,
			Used:      vm.Used,
			Percent:   vm.UsedPercent,
		}
	}

	httpx.WriteJSON(w, info)
}
