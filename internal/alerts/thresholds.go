package alerts

// Default thresholds. Percentages unless noted.
const (
	DefaultHostRAMPercent      = 40
	DefaultHostDiskPercent     = 80
	DefaultContainerCPUPercent = 80
	DefaultContainerRAMPercent = 80
	// DefaultContainerBlockIOMB is compared against cumulative read+write
	// megabytes. Its value matches the percentage defaults and is kept
	// separate so it can be retuned on its own.
	DefaultContainerBlockIOMB = 80
)

// Thresholds holds one limit per rule.
type Thresholds struct {
	HostRAM            float64 `mapstructure:"host_ram" yaml:"host_ram" json:"host_ram"`
	HostDisk           float64 `mapstructure:"host_disk" yaml:"host_disk" json:"host_disk"`
	ContainerCPU       float64 `mapstructure:"container_cpu" yaml:"container_cpu" json:"container_cpu"`
	ContainerRAM       float64 `mapstructure:"container_ram" yaml:"container_ram" json:"container_ram"`
	ContainerBlockIOMB float64 `mapstructure:"container_block_io_mb" yaml:"container_block_io_mb" json:"container_block_io_mb"`
}

// DefaultThresholds returns the built-in limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		HostRAM:            DefaultHostRAMPercent,
		HostDisk:           DefaultHostDiskPercent,
		ContainerCPU:       DefaultContainerCPUPercent,
		ContainerRAM:       DefaultContainerRAMPercent,
		ContainerBlockIOMB: DefaultContainerBlockIOMB,
	}
}
