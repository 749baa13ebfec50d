package browser

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Monitor 系统资源监控器
// 职责: 周期性采样内存和CPU, 在浏览器会话构造前判断资源是否充足
type Monitor struct {
	config MonitorConfig

	// 缓存的内存统计数据
	lastMemStats runtime.MemStats

	// 系统总内存(字节)
	totalMemory uint64

	// CPU使用率监控
	lastCPUUsage float64
	cpuUsageMu   sync.RWMutex

	// 保护lastMemStats的读写锁
	mu sync.RWMutex

	// 监控控制
	cancelFunc context.CancelFunc
	isRunning  bool
}

// MonitorConfig 资源监控器配置
type MonitorConfig struct {
	SafetyReserveMemory int64 // 安全保留内存(字节)
	SafetyThreshold     int64 // 安全阈值(字节)
	CPULoadThreshold    int   // CPU负载阈值(%)
}

// MemoryStatus 内存状态信息
type MemoryStatus struct {
	TotalMemory     uint64 // 系统总内存(字节)
	AllocatedMemory uint64 // 当前程序已分配内存(字节)
	AvailableMemory int64  // 可用内存(字节)
	MemoryPressure  string // 内存压力等级
}

// NewMonitor 创建资源监控器实例
func NewMonitor(config MonitorConfig) *Monitor {
	// 获取系统总内存(使用gopsutil获取真实系统内存)
	vmStat, err := mem.VirtualMemory()
	var totalMem uint64
	if err != nil {
		log.Warn().Err(err).Msg("获取系统内存失败,使用默认值")
		totalMem = 4 * 1024 * 1024 * 1024 // 默认4GB
	} else {
		totalMem = vmStat.Total
		log.Info().Msgf("系统总内存: %.2f GB", float64(totalMem)/(1024*1024*1024))
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return &Monitor{
		config:       config,
		totalMemory:  totalMem,
		lastMemStats: memStats,
	}
}

// StartMonitoring 启动资源监控
// 启动后台goroutine周期性采样runtime.MemStats
func (m *Monitor) StartMonitoring(interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// 如果已经在运行,直接返回(幂等)
	if m.isRunning {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancelFunc = cancel
	m.isRunning = true

	go m.monitoringLoop(ctx, interval)
}

// monitoringLoop 后台监控循环
func (m *Monitor) monitoringLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var memStats runtime.MemStats
			runtime.ReadMemStats(&memStats)

			m.mu.Lock()
			m.lastMemStats = memStats
			m.mu.Unlock()

			cpuUsage := m.getCPUUsage()
			m.cpuUsageMu.Lock()
			m.lastCPUUsage = cpuUsage
			m.cpuUsageMu.Unlock()

			// 内存压力偏离normal时在日志中可见
			status := m.GetMemoryStatus()
			if status.MemoryPressure != "normal" {
				log.Warn().Msgf("内存压力 %s: 可用 %dMB",
					status.MemoryPressure, status.AvailableMemory/(1024*1024))
			}
		}
	}
}

// getCPUUsage 获取系统CPU使用率(百分比)
func (m *Monitor) getCPUUsage() float64 {
	// 100毫秒采样间隔,避免阻塞过久; perCPU=false 返回所有核心的平均使用率
	percentages, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		log.Warn().Err(err).Msg("获取CPU使用率失败")
		return 0.0
	}
	if len(percentages) == 0 {
		log.Warn().Msg("CPU使用率数据为空")
		return 0.0
	}
	return percentages[0]
}

// StopMonitoring 停止资源监控
func (m *Monitor) StopMonitoring() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.isRunning && m.cancelFunc != nil {
		m.cancelFunc()
		m.isRunning = false
		m.cancelFunc = nil
	}
}

// CheckAvailability 检查当前资源是否允许构造新的浏览器会话
// 返回canCreate(是否允许)和reason(不允许时的原因)
func (m *Monitor) CheckAvailability() (canCreate bool, reason string) {
	m.mu.RLock()
	memStats := m.lastMemStats
	m.mu.RUnlock()

	allocatedMemory := memStats.Alloc
	availableMemory := int64(m.totalMemory) - int64(allocatedMemory) - m.config.SafetyReserveMemory

	if availableMemory < m.config.SafetyThreshold {
		availableMemoryMB := availableMemory / (1024 * 1024)
		log.Warn().Msgf("可用内存不足(当前%dMB),浏览器会话构造受限", availableMemoryMB)
		return false, fmt.Sprintf("内存不足(当前%dMB)", availableMemoryMB)
	}

	// 如果配置的阈值 >= 200, 则跳过CPU检查(视为禁用)
	if m.config.CPULoadThreshold < 200 {
		m.cpuUsageMu.RLock()
		cpuUsage := m.lastCPUUsage
		m.cpuUsageMu.RUnlock()

		if cpuUsage > float64(m.config.CPULoadThreshold) {
			return false, fmt.Sprintf("CPU负载过高(当前%.1f%%)", cpuUsage)
		}
	}

	return true, ""
}

// GetMemoryStatus 获取当前内存状态
func (m *Monitor) GetMemoryStatus() MemoryStatus {
	m.mu.RLock()
	memStats := m.lastMemStats
	m.mu.RUnlock()

	allocatedMemory := memStats.Alloc
	availableMemory := int64(m.totalMemory) - int64(allocatedMemory) - m.config.SafetyReserveMemory

	var pressure string
	availableMemoryMB := availableMemory / (1024 * 1024)
	switch {
	case availableMemoryMB < 200:
		pressure = "emergency"
	case availableMemoryMB < 300:
		pressure = "critical"
	case availableMemoryMB < 500:
		pressure = "warning"
	default:
		pressure = "normal"
	}

	return MemoryStatus{
		TotalMemory:     m.totalMemory,
		AllocatedMemory: allocatedMemory,
		AvailableMemory: availableMemory,
		MemoryPressure:  pressure,
	}
}
