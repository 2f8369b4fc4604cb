package scanner

import (
	"encoding/binary"
	"fmt"

	"unipid/internal/hardware"
	"unipid/internal/logger"
)

// ProbeBoards finds which of units {1,2,3} has a PLC board behind it, by
// reading input register 1000 (§4.3). A board that does not answer is
// skipped silently — absence is not an error.
func ProbeBoards(client *TCPClient) []*hardware.Board {
	var boards []*hardware.Board
	for unit := uint8(1); unit <= 3; unit++ {
		client.SetSlave(unit)
		raw, err := client.Client.ReadInputRegisters(1000, 1)
		if err != nil {
			logger.LogDebug("no board on SPI %d: %v", unit, err)
			continue
		}
		reg := binary.BigEndian.Uint16(raw)
		firmware := fmt.Sprintf("%d.%d", reg>>8, reg&0xff)
		logger.LogInfo("found board on SPI %d (firmware %s)", unit, firmware)
		boards = append(boards, &hardware.Board{Unit: unit, Firmware: firmware})
	}
	return boards
}

// eastronFirmwareRegister is the Eastron SDM120M's vendor-specific
// firmware holding register pair, per original_source's read_extensions
// special case for that model.
const eastronFirmwareRegister = 0xFC02

// ProbeExtension attempts a vendor-specific firmware read for a
// configured RTU extension. Failure is logged but the extension is
// still registered — its later read failures will also be logged
// (§4.3).
func ProbeExtension(client *RTUClient, ext *hardware.Extension) {
	client.SetSlave(ext.Unit)

	if ext.Manufacturer != "Eastron" || ext.Model != "SDM120M" {
		logger.LogDebug("no firmware probe defined for %s %s, registering unprobed", ext.Manufacturer, ext.Model)
		return
	}

	raw, err := client.Client.ReadHoldingRegisters(eastronFirmwareRegister, 2)
	if err != nil {
		logger.LogWarn("firmware probe failed for %s: %v", ext.String(), err)
		return
	}
	hi := binary.BigEndian.Uint16(raw[0:2])
	lo := binary.BigEndian.Uint16(raw[2:4])
	ext.Firmware = fmt.Sprintf("%d.%d", hi, lo)
	logger.LogInfo("found device with unit %d (manufacturer: %s, model: %s, firmware: %s)",
		ext.Unit, ext.Manufacturer, ext.Model, ext.Firmware)
}
