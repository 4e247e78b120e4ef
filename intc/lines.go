package intc

// Interrupt lines of the OMAP35xx MPU interrupt controller used by the
// board model.
const (
	IRQSDMA0 = 12
	IRQSDMA1 = 13
	IRQSDMA2 = 14
	IRQSDMA3 = 15

	IRQGPIO1 = 29
	IRQGPIO2 = 30
	IRQGPIO3 = 31
	IRQGPIO4 = 32
	IRQGPIO5 = 33
	IRQGPIO6 = 34

	IRQGPT1 = 37
	IRQGPT2 = 38

	IRQI2C1 = 56
	IRQI2C2 = 57
	IRQI2C3 = 61

	IRQUART1 = 72
	IRQUART2 = 73
	IRQUART3 = 74

	IRQMMC1 = 83
	IRQMMC2 = 86
	IRQMMC3 = 94
)

// NumLines is the number of interrupt lines.
const NumLines = 96

// NumBanks is the number of 32-line banks.
const NumBanks = 3

const linesPerBank = 32

func locate(irq int) (bank int, bit uint32) {
	return irq / linesPerBank, uint32(1) << (irq % linesPerBank)
}
