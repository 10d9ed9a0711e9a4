package model

import (
	"fmt"
	"time"

	"rctgcs/internal/comms"
)

// StartMission commands the payload to start the detection software.
func (m *Model) StartMission(timeout time.Duration) error {
	return m.sendCommand(&comms.StartPacket{}, comms.CommandStart, timeout)
}

// StopMission commands the payload to stop the detection software.
func (m *Model) StopMission(timeout time.Duration) error {
	return m.sendCommand(&comms.StopPacket{}, comms.CommandStop, timeout)
}

// GetFrequencies refreshes the frequency cache from the payload and
// returns the result. It waits for both the ack and the frequency report.
func (m *Model) GetFrequencies(timeout time.Duration) ([]uint32, error) {
	timeout = m.timeoutOr(timeout)

	m.mu.Lock()
	if m.freqState == CacheGood {
		m.freqState = CacheDirty
	}
	wait := make(chan struct{})
	m.freqWaiters = append(m.freqWaiters, wait)
	m.mu.Unlock()

	if err := m.sendCommand(&comms.GetFreqPacket{}, comms.CommandGetFreq, timeout); err != nil {
		return nil, err
	}
	if err := m.await(wait, timeout); err != nil {
		return nil, fmt.Errorf("frequency report: %w", err)
	}
	return m.Frequencies(), nil
}

// SetFrequencies replaces the payload's target frequency list.
func (m *Model) SetFrequencies(freqs []uint32, timeout time.Duration) error {
	if err := m.sendCommand(&comms.SetFreqPacket{Frequencies: freqs}, comms.CommandSetFreq, timeout); err != nil {
		return err
	}
	m.mu.Lock()
	m.freqState = CacheDirty
	m.mu.Unlock()
	return nil
}

// AddFrequency adds one target frequency, refreshing the cache first when
// it is not known to be current. Adding a frequency already present is a
// no-op.
func (m *Model) AddFrequency(freqHz uint32, timeout time.Duration) error {
	freqs, err := m.currentFrequencies(timeout)
	if err != nil {
		return err
	}
	for _, f := range freqs {
		if f == freqHz {
			return nil
		}
	}
	return m.SetFrequencies(append(freqs, freqHz), timeout)
}

// RemoveFrequency removes one target frequency. Removing an absent
// frequency is a no-op.
func (m *Model) RemoveFrequency(freqHz uint32, timeout time.Duration) error {
	freqs, err := m.currentFrequencies(timeout)
	if err != nil {
		return err
	}
	next := freqs[:0]
	for _, f := range freqs {
		if f != freqHz {
			next = append(next, f)
		}
	}
	if len(next) == len(freqs) {
		return nil
	}
	return m.SetFrequencies(next, timeout)
}

func (m *Model) currentFrequencies(timeout time.Duration) ([]uint32, error) {
	m.mu.Lock()
	state := m.freqState
	cached := append([]uint32(nil), m.frequencies...)
	m.mu.Unlock()
	if state == CacheGood {
		return cached, nil
	}
	return m.GetFrequencies(timeout)
}

// GetOptions refreshes the option cache at the given scope and returns it.
func (m *Model) GetOptions(scope comms.OptionScope, timeout time.Duration) (comms.Options, error) {
	timeout = m.timeoutOr(timeout)

	m.mu.Lock()
	wait := make(chan struct{})
	m.optWaiters = append(m.optWaiters, wait)
	m.mu.Unlock()

	if err := m.sendCommand(&comms.GetOptPacket{Scope: scope}, comms.CommandGetOpt, timeout); err != nil {
		return comms.Options{}, err
	}
	if err := m.await(wait, timeout); err != nil {
		return comms.Options{}, fmt.Errorf("option report: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.options.Scope < scope {
		return comms.Options{}, fmt.Errorf("payload reported scope %s, requested %s", m.options.Scope, scope)
	}
	return m.options, nil
}

// SetOptions pushes a new option set to the payload.
func (m *Model) SetOptions(opts comms.Options, timeout time.Duration) error {
	if err := m.sendCommand(&comms.SetOptPacket{Options: opts}, comms.CommandSetOpt, timeout); err != nil {
		return err
	}
	m.mu.Lock()
	for scope := comms.ScopeBase; scope <= opts.Scope; scope++ {
		m.optionState[scope] = CacheDirty
	}
	m.mu.Unlock()
	return nil
}

// SendUpgrade streams a firmware image to the payload in fixed-size
// chunks, waiting for the ack of each chunk before sending the next.
func (m *Model) SendUpgrade(image []byte, timeout time.Duration) error {
	if len(image) == 0 {
		return fmt.Errorf("empty firmware image")
	}
	total := (len(image) + upgradeChunkLen - 1) / upgradeChunkLen
	if total > int(^uint16(0)) {
		return fmt.Errorf("firmware image too large: %d chunks", total)
	}
	for seq := 0; seq < total; seq++ {
		start := seq * upgradeChunkLen
		end := start + upgradeChunkLen
		if end > len(image) {
			end = len(image)
		}
		chunk := &comms.UpgradePacket{
			SeqNum:     uint16(seq + 1),
			NumPackets: uint16(total),
			Data:       image[start:end],
		}
		if err := m.sendCommand(chunk, comms.CommandUpgrade, timeout); err != nil {
			return fmt.Errorf("upgrade chunk %d/%d: %w", seq+1, total, err)
		}
	}
	return nil
}

func (m *Model) sendCommand(p comms.Packet, id comms.CommandID, timeout time.Duration) error {
	return m.session.SendCommand(p, id, m.timeoutOr(timeout))
}

func (m *Model) timeoutOr(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return m.commandTimeout
	}
	return timeout
}

func (m *Model) await(wait <-chan struct{}, timeout time.Duration) error {
	select {
	case <-wait:
		return nil
	case <-time.After(timeout):
		return comms.ErrCommandTimeout
	}
}
