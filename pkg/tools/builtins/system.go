package builtins

import (
	"context"
	"runtime"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/rhuss/lokal/pkg/debug"
	"github.com/rhuss/lokal/pkg/tools"
)

func systemInfoTool(reg *tools.Registry, deps Deps) tools.Tool {
	return tools.Tool{
		Definition: tools.Definition{
			Name:        GetSystemInfo,
			Description: "Get system information and capabilities",
			Parameters:  tools.ObjectSchema(nil),
		},
		Handler: tools.HandlerFunc(func(ctx context.Context, params map[string]any) (any, error) {
			service := map[string]any{
				"tools_count": reg.Len(),
				"go_version":  runtime.Version(),
			}
			if deps.Contexts != nil {
				service["contexts_count"] = deps.Contexts.Len()
			}
			if deps.Documents != nil {
				service["documents_count"] = deps.Documents.Len()
			}
			return map[string]any{
				"platform":  platformInfo(ctx),
				"resources": resourceInfo(ctx),
				"service":   service,
			}, nil
		}),
	}
}

// platformInfo and resourceInfo report what the host exposes; probes that
// fail are left out.
func platformInfo(ctx context.Context) map[string]any {
	info := map[string]any{
		"system":  runtime.GOOS,
		"machine": runtime.GOARCH,
	}
	if h, err := host.InfoWithContext(ctx); err == nil {
		info["platform"] = h.Platform
		info["release"] = h.KernelVersion
		info["version"] = h.PlatformVersion
		info["hostname"] = h.Hostname
	} else {
		debug.Log("tools", "host info unavailable", "error", err)
	}
	if cpus, err := cpu.InfoWithContext(ctx); err == nil && len(cpus) > 0 {
		info["processor"] = cpus[0].ModelName
	}
	return info
}

func resourceInfo(ctx context.Context) map[string]any {
	info := map[string]any{"cpu_count": runtime.NumCPU()}
	if n, err := cpu.CountsWithContext(ctx, true); err == nil && n > 0 {
		info["cpu_count"] = n
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		info["memory_total"] = vm.Total
		info["memory_available"] = vm.Available
	} else {
		debug.Log("tools", "memory info unavailable", "error", err)
	}
	if du, err := disk.UsageWithContext(ctx, "/"); err == nil {
		info["disk_usage"] = du.UsedPercent
	}
	return info
}
