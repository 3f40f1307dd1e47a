// Package ports define contratos que conectam o domínio a implementações externas.
package ports

// MetricsRecorder recebe fatos numéricos emitidos pelo subsistema.
type MetricsRecorder interface {
	Add(name string, value float64, tags map[string]string)
	Observe(name string, value float64, tags map[string]string)
}

// NoOpMetricsRecorder descarta métricas; evita checagens de nil no caminho quente.
type NoOpMetricsRecorder struct{}

func (NoOpMetricsRecorder) Add(name string, value float64, tags map[string]string)     {}
func (NoOpMetricsRecorder) Observe(name string, value float64, tags map[string]string) {}
