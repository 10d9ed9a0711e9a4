package events

// Payload component initialization states, as reported in the heartbeat
// status bytes.

// SystemState is the payload's top-level mission state machine.
type SystemState uint8

const (
	SystemInit      SystemState = 0
	SystemWaitInit  SystemState = 1
	SystemWaitStart SystemState = 2
	SystemStart     SystemState = 3
	SystemWaitEnd   SystemState = 4
	SystemFinish    SystemState = 5
	SystemFail      SystemState = 6
)

func (s SystemState) String() string {
	switch s {
	case SystemInit:
		return "init"
	case SystemWaitInit:
		return "wait_init"
	case SystemWaitStart:
		return "wait_start"
	case SystemStart:
		return "start"
	case SystemWaitEnd:
		return "wait_end"
	case SystemFinish:
		return "finish"
	case SystemFail:
		return "fail"
	}
	return "unknown"
}

// SDRState tracks software-defined radio bring-up.
type SDRState uint8

const (
	SDRFindDevices SDRState = 0
	SDRWaitRecycle SDRState = 1
	SDRUSRPProbe   SDRState = 2
	SDRReady       SDRState = 3
	SDRFail        SDRState = 4
)

func (s SDRState) String() string {
	switch s {
	case SDRFindDevices:
		return "find_devices"
	case SDRWaitRecycle:
		return "wait_recycle"
	case SDRUSRPProbe:
		return "usrp_probe"
	case SDRReady:
		return "ready"
	case SDRFail:
		return "fail"
	}
	return "unknown"
}

// SensorState tracks the external GPS/sensor link.
type SensorState uint8

const (
	SensorGetTTY      SensorState = 0
	SensorGetMsg      SensorState = 1
	SensorWaitRecycle SensorState = 2
	SensorReady       SensorState = 3
	SensorFail        SensorState = 4
)

func (s SensorState) String() string {
	switch s {
	case SensorGetTTY:
		return "get_tty"
	case SensorGetMsg:
		return "get_msg"
	case SensorWaitRecycle:
		return "wait_recycle"
	case SensorReady:
		return "ready"
	case SensorFail:
		return "fail"
	}
	return "unknown"
}

// StorageState tracks output-directory initialization.
type StorageState uint8

const (
	StorageGetDir      StorageState = 0
	StorageCheckDir    StorageState = 1
	StorageCheckSpace  StorageState = 2
	StorageWaitRecycle StorageState = 3
	StorageReady       StorageState = 4
	StorageFail        StorageState = 5
)

func (s StorageState) String() string {
	switch s {
	case StorageGetDir:
		return "get_output_dir"
	case StorageCheckDir:
		return "check_output_dir"
	case StorageCheckSpace:
		return "check_space"
	case StorageWaitRecycle:
		return "wait_recycle"
	case StorageReady:
		return "ready"
	case StorageFail:
		return "fail"
	}
	return "unknown"
}
