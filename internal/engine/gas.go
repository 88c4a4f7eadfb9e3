package engine

// Gas schedule.
const (
	GasMessage      uint64 = 21000
	GasLoad         uint64 = 800
	GasStore        uint64 = 5000
	GasClear        uint64 = 5000
	GasCall         uint64 = 700
	GasLog          uint64 = 375
	GasLogByte      uint64 = 8
	GasDeploy       uint64 = 32000
	GasDeployByte   uint64 = 200
	DefaultGasLimit uint64 = 30_000_000
)

// MaxCallDepth bounds nested calls per message.
const MaxCallDepth = 1024

// gasMeter tracks consumption against a per-message limit. Gas spent by a
// failed nested call stays spent.
type gasMeter struct {
	limit uint64
	used  uint64
}

func newGasMeter(limit uint64) *gasMeter {
	return &gasMeter{limit: limit}
}

// charge consumes n gas. On exhaustion the meter is drained and an
// OUT_OF_GAS error is returned.
func (g *gasMeter) charge(n uint64) error {
	if n > g.limit-g.used {
		g.used = g.limit
		return newOutOfGas(g.limit)
	}
	g.used += n
	return nil
}

func (g *gasMeter) remaining() uint64 {
	return g.limit - g.used
}

func logCost(data []byte) uint64 {
	return GasLog + GasLogByte*uint64(len(data))
}

func deployCost(code []byte) uint64 {
	return GasDeploy + GasDeployByte*uint64(len(code))
}
