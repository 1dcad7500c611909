package features

import "golang.org/x/sys/cpu"

// HostCPUFeatures reports the x86 extensions of the build machine. It is only
// meaningful when the target architecture is the host architecture.
// x/sys/cpu does not expose LZCNT, so lzcnt is never reported here.
func HostCPUFeatures() CPUFeatures {
	out := CPUFeatures{}
	for name, ok := range map[string]bool{
		"sse2":      cpu.X86.HasSSE2,
		"sse4.1":    cpu.X86.HasSSE41,
		"sse4.2":    cpu.X86.HasSSE42,
		"avx2":      cpu.X86.HasAVX2,
		"bmi1":      cpu.X86.HasBMI1,
		"pclmulqdq": cpu.X86.HasPCLMULQDQ,
	} {
		if ok {
			out[name] = true
		}
	}
	return out
}
