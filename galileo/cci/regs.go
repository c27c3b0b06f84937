// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package cci

// Galileo2ModelID is the value of SENSOR_MODEL_ID.
const Galileo2ModelID = 0x2002

// Register is a sensor register address.
type Register uint16

// Registers used by the driver. Width is in the trailing comment.
const (
	SensorModelID           Register = 0x0000 // 16
	ModeSelect              Register = 0x0100 // 8
	ImageOrientation        Register = 0x0101 // 8
	SoftwareReset           Register = 0x0103 // 8
	GroupedParameterHold    Register = 0x0104 // 8
	CSISignalingMode        Register = 0x0111 // 8
	CSIDataFormatSource     Register = 0x0112 // 8
	CSIDataFormatDest       Register = 0x0113 // 8
	CSILaneMode             Register = 0x0114 // 8
	ExtclkFrqMHz            Register = 0x0136 // 8 whole MHz, next byte is the 1/256 fraction
	CoarseIntegrationTime   Register = 0x0202 // 16
	AnalogGainCodeGlobal    Register = 0x0204 // 16
	VTPixClkDiv             Register = 0x0300 // 16
	VTSysClkDiv             Register = 0x0302 // 16
	PrePLLClkDiv            Register = 0x0304 // 16
	PLLMultiplier           Register = 0x0306 // 16
	OPPixClkDiv             Register = 0x0308 // 16
	OPSysClkDiv             Register = 0x030A // 16
	VTFrameLengthLines      Register = 0x0340 // 16
	VTLineLengthPck         Register = 0x0342 // 16
	XAddrStart              Register = 0x0344 // 16
	YAddrStart              Register = 0x0346 // 16
	XAddrEnd                Register = 0x0348 // 16
	YAddrEnd                Register = 0x034A // 16
	XOutputSize             Register = 0x034C // 16
	YOutputSize             Register = 0x034E // 16
	ScalingMode             Register = 0x0400 // 16
	SpatialSampling         Register = 0x0402 // 16
	DigitalCropXOffset      Register = 0x0408 // 16
	DigitalCropYOffset      Register = 0x040A // 16
	DigitalCropImageWidth   Register = 0x040C // 16
	DigitalCropImageHeight  Register = 0x040E // 16
	OutputImageWidth        Register = 0x0410 // 16
	DPHYCtrl                Register = 0x0808 // 8
	RequestedLinkBitRate    Register = 0x0820 // 4x8 Mbps, bits 31..0
	BinningMode             Register = 0x0900 // 8
	BinningType             Register = 0x0901 // 8 x<<4|y
	DataTransferIF1Ctrl     Register = 0x0A00 // 8
	DataTransferIF1Status   Register = 0x0A01 // 8
	DataTransferIF1PageSel  Register = 0x0A02 // 8
	DataTransferIF1Data     Register = 0x0A04 // 64x8
	SingleDefectCorrect     Register = 0x0B05 // 8
	CoupletDefectCorrect    Register = 0x0B06 // 8
	GlobalResetCtrl1        Register = 0x0C00 // 8
	GlobalResetModeConfig1  Register = 0x0C02 // 8
	TRDYCtrl                Register = 0x0C04 // 16
	TRDOUTCtrl              Register = 0x0C06 // 16
	TShutterStrobeDelayCtrl Register = 0x0C08 // 16
	TShutterStrobeWidthCtrl Register = 0x0C0A // 16
	TFlashStrobeWidthHigh   Register = 0x0C0E // 16
	TGRSTIntervalCtrl       Register = 0x0C10 // 16
	TFlashStrobeWidthHighRS Register = 0x0C18 // 16
	FlashModeRS             Register = 0x0C1A // 8
	FlashTriggerRS          Register = 0x0C1B // 8
)

// ImageOrientation bits.
const (
	OrientationHMirror uint8 = 1 << 0
	OrientationVMirror uint8 = 1 << 1
)

// GlobalResetModeConfig1 bits.
const (
	GRVFToGlobalReset      uint8 = 1 << 0 // Complete frame before global reset.
	GRGlobalResetToVF      uint8 = 1 << 1
	GRReadoutStart         uint8 = 1 << 2 // 0: readout starts on tRDOUT.
	GRLongExposure         uint8 = 1 << 3
	GRContinuousReset      uint8 = 1 << 4
	GRFlashStrobe          uint8 = 1 << 5
	GRShutterStrobeMuxing  uint8 = 1 << 6
	GRSAShutterStrobeMuxed uint8 = 1 << 7 // Shutter-assist strobe on the SA pin.
)

// DataTransferIF1Status bits.
const (
	DTReadReady     uint8 = 1 << 0
	DTWriteReady    uint8 = 1 << 1
	DTDataCorrupted uint8 = 1 << 2
	DTImproperUsage uint8 = 1 << 3
)

// AD5830 shutter driver registers and values.
const (
	ShutterRegMode  uint8 = 0x02
	ShutterRegDrive uint8 = 0x06

	ShutterMode150mAI2C     uint8 = 0x15 // 150mA, single shot, i²c controlled.
	ShutterMode200mAStrobe  uint8 = 0x0A // 200mA, auto-reverse, strobe controlled.
	ShutterDriveOpen        uint8 = 0xB4
	ShutterDriveClose       uint8 = 0xB1
	ShutterDriveStrobeArmed uint8 = 0xB4
)
