package enocean

import (
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"net"
	"strconv"
	"sync"
	"time"

	"go.bug.st/serial"
)

// VersionInfo contains gateway version information
type VersionInfo struct {
	AppVersion     string `json:"app_version"`
	APIVersion     string `json:"api_version"`
	ChipID         string `json:"chip_id"`
	ChipVersion    string `json:"chip_version"`
	AppDescription string `json:"app_description"`
}

const responseTimeout = 5 * time.Second

// Client handles the link to an EnOcean gateway: either a TCP-attached
// gateway or a USB dongle on a serial port. It owns the ESP3 framing
// (sync byte, CRC8) and the common-command request/response cycle, and
// delivers radio telegrams and events through callbacks.
type Client struct {
	addr         string
	dial         func() (io.ReadWriteCloser, error)
	conn         io.ReadWriteCloser
	mu           sync.Mutex
	connected    bool
	stopping     bool
	onTelegram   func(*Telegram)
	onEvent      func(eventCode byte, data []byte)
	stopChan     chan struct{}
	responseChan chan *Telegram
	buffer       []byte
	baseID       []byte // Gateway base ID for transmitting
}

// NewTCPClient creates a client for a gateway reachable over TCP.
func NewTCPClient(host string, port int) *Client {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	return &Client{
		addr: addr,
		dial: func() (io.ReadWriteCloser, error) {
			return net.DialTimeout("tcp", addr, 10*time.Second)
		},
		stopChan:     make(chan struct{}),
		responseChan: make(chan *Telegram, 1),
	}
}

// NewSerialClient creates a client for a USB 300 class dongle on a serial
// port. ESP3 runs at 57600 baud, 8N1.
func NewSerialClient(device string) *Client {
	return &Client{
		addr: device,
		dial: func() (io.ReadWriteCloser, error) {
			port, err := serial.Open(device, &serial.Mode{BaudRate: 57600})
			if err != nil {
				return nil, err
			}
			// Bounded reads so the read loop can observe stopChan.
			if err := port.SetReadTimeout(time.Second); err != nil {
				port.Close()
				return nil, err
			}
			return port, nil
		},
		stopChan:     make(chan struct{}),
		responseChan: make(chan *Telegram, 1),
	}
}

// SetTelegramHandler sets the callback for received radio telegrams
func (c *Client) SetTelegramHandler(handler func(*Telegram)) {
	c.onTelegram = handler
}

// SetEventHandler sets the callback for received events
func (c *Client) SetEventHandler(handler func(eventCode byte, data []byte)) {
	c.onEvent = handler
}

// Connect establishes the link to the EnOcean gateway
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := c.dial()
	if err != nil {
		return fmt.Errorf("failed to connect to EnOcean gateway: %w", err)
	}

	c.conn = conn
	c.connected = true
	log.Printf("Connected to EnOcean gateway at %s", c.addr)

	go c.readLoop()

	// Give read loop time to start
	time.Sleep(100 * time.Millisecond)

	return nil
}

// Close closes the link
func (c *Client) Close() error {
	c.mu.Lock()
	c.stopping = true
	c.connected = false
	c.mu.Unlock()

	close(c.stopChan)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// readLoop continuously reads telegrams from the link
func (c *Client) readLoop() {
	buf := make([]byte, 1024)

	for {
		select {
		case <-c.stopChan:
			return
		default:
			if nc, ok := c.conn.(net.Conn); ok {
				nc.SetReadDeadline(time.Now().Add(1 * time.Second))
			}
			n, err := c.conn.Read(buf)
			if err != nil {
				if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
					continue
				}
				c.mu.Lock()
				stopping := c.stopping
				c.mu.Unlock()
				if stopping {
					return
				}
				if err == io.EOF {
					log.Println("EnOcean connection closed")
					c.mu.Lock()
					c.connected = false
					c.mu.Unlock()
					return
				}
				log.Printf("Error reading from EnOcean: %v", err)
				continue
			}

			// Serial reads return zero bytes on timeout
			if n > 0 {
				c.buffer = append(c.buffer, buf[:n]...)
				c.parseBuffer()
			}
		}
	}
}

// parseBuffer processes buffered data and extracts complete telegrams
func (c *Client) parseBuffer() {
	for {
		// Find sync byte
		syncIdx := -1
		for i, b := range c.buffer {
			if b == 0x55 {
				syncIdx = i
				break
			}
		}

		if syncIdx == -1 {
			c.buffer = nil
			return
		}

		// Discard bytes before sync
		if syncIdx > 0 {
			c.buffer = c.buffer[syncIdx:]
		}

		// Need at least 6 bytes for header
		if len(c.buffer) < 6 {
			return
		}

		dataLen := uint16(c.buffer[1])<<8 | uint16(c.buffer[2])
		optLen := c.buffer[3]
		packetType := PacketType(c.buffer[4])
		crc8h := c.buffer[5]

		totalLen := 6 + int(dataLen) + int(optLen) + 1

		// Wait for complete packet
		if len(c.buffer) < totalLen {
			return
		}

		// Verify header CRC
		if crc8(c.buffer[1:5]) != crc8h {
			log.Println("Invalid header CRC, searching for next sync byte")
			c.buffer = c.buffer[1:]
			continue
		}

		telegram := &Telegram{
			SyncByte:    0x55,
			DataLength:  dataLen,
			OptionalLen: optLen,
			PacketType:  packetType,
			CRC8H:       crc8h,
			Data:        make([]byte, dataLen),
			Raw:         make([]byte, totalLen),
		}

		copy(telegram.Data, c.buffer[6:6+int(dataLen)])
		copy(telegram.Raw, c.buffer[:totalLen])

		if optLen > 0 {
			telegram.OptionalData = make([]byte, optLen)
			copy(telegram.OptionalData, c.buffer[6+int(dataLen):6+int(dataLen)+int(optLen)])
		}

		telegram.CRC8D = c.buffer[totalLen-1]

		// Route packets based on type
		switch telegram.PacketType {
		case PacketTypeResponse:
			select {
			case c.responseChan <- telegram:
			default:
				// Drop if channel full
			}
		case PacketTypeEvent:
			if len(telegram.Data) > 0 && c.onEvent != nil {
				eventCode := telegram.Data[0]
				eventData := telegram.Data[1:]
				c.onEvent(eventCode, eventData)
			}
		default:
			if c.onTelegram != nil {
				c.onTelegram(telegram)
			}
		}

		// Remove processed packet from buffer
		c.buffer = c.buffer[totalLen:]
	}
}

// write sends raw bytes over the link
func (c *Client) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected || c.conn == nil {
		return fmt.Errorf("not connected")
	}

	_, err := c.conn.Write(data)
	return err
}

// buildPacket creates an ESP3 packet
func buildPacket(packetType PacketType, data []byte, optionalData []byte) []byte {
	dataLen := len(data)
	optLen := len(optionalData)

	// Header: Sync + DataLen(2) + OptLen(1) + PacketType(1) + CRC8H(1)
	header := []byte{
		0x55,
		byte(dataLen >> 8),
		byte(dataLen & 0xFF),
		byte(optLen),
		byte(packetType),
	}
	header = append(header, crc8(header[1:5]))

	// Build full packet
	packet := append(header, data...)
	if optLen > 0 {
		packet = append(packet, optionalData...)
	}

	// Calculate data CRC
	crcData := append(append([]byte{}, data...), optionalData...)
	packet = append(packet, crc8(crcData))

	return packet
}

// request sends one packet and waits for the gateway's response telegram.
func (c *Client) request(packet []byte) (*Telegram, error) {
	// Clear any pending responses
	select {
	case <-c.responseChan:
	default:
	}

	if err := c.write(packet); err != nil {
		return nil, err
	}

	select {
	case resp := <-c.responseChan:
		return resp, nil
	case <-time.After(responseTimeout):
		return nil, fmt.Errorf("timeout waiting for response")
	}
}

// Send transmits a fully-built radio telegram with its optional trailer.
// This is the transport contract the pilotwire core builds telegrams
// against: data is RORG + payload + sender ID + status, optional is the
// subtelegram/destination/dBm/security trailer.
func (c *Client) Send(data, optional []byte, packetType byte) error {
	packet := buildPacket(PacketType(packetType), data, optional)
	log.Printf("Sending radio telegram: %s", hex.EncodeToString(packet))

	resp, err := c.request(packet)
	if err != nil {
		return fmt.Errorf("failed to send radio telegram: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0] != RET_OK {
		return fmt.Errorf("radio transmit failed with code: 0x%02X", resp.Data[0])
	}
	return nil
}

// ReadVersion sends CO_RD_VERSION command and returns gateway version info
func (c *Client) ReadVersion() (*VersionInfo, error) {
	resp, err := c.request(buildPacket(PacketTypeCommonCmd, []byte{CO_RD_VERSION}, nil))
	if err != nil {
		return nil, fmt.Errorf("CO_RD_VERSION: %w", err)
	}
	return parseVersionResponse(resp)
}

// parseVersionResponse parses the CO_RD_VERSION response
func parseVersionResponse(resp *Telegram) (*VersionInfo, error) {
	// Response format:
	// Return code (1) + APP version (4) + API version (4) + Chip ID (4) + Chip version (4) + APP description (16)
	// Total: 33 bytes
	if len(resp.Data) < 33 {
		return nil, fmt.Errorf("invalid version response length: %d", len(resp.Data))
	}

	if resp.Data[0] != RET_OK {
		return nil, fmt.Errorf("version command failed with code: 0x%02X", resp.Data[0])
	}

	info := &VersionInfo{
		AppVersion: fmt.Sprintf("%d.%d.%d.%d",
			resp.Data[1], resp.Data[2], resp.Data[3], resp.Data[4]),
		APIVersion: fmt.Sprintf("%d.%d.%d.%d",
			resp.Data[5], resp.Data[6], resp.Data[7], resp.Data[8]),
		ChipID: fmt.Sprintf("%02X:%02X:%02X:%02X",
			resp.Data[9], resp.Data[10], resp.Data[11], resp.Data[12]),
		ChipVersion: fmt.Sprintf("%d.%d.%d.%d",
			resp.Data[13], resp.Data[14], resp.Data[15], resp.Data[16]),
	}

	// Parse APP description (null-terminated string)
	descBytes := resp.Data[17:33]
	for i, b := range descBytes {
		if b == 0 {
			descBytes = descBytes[:i]
			break
		}
	}
	info.AppDescription = string(descBytes)

	return info, nil
}

// Reset sends CO_WR_RESET command to restart the gateway without clearing settings
func (c *Client) Reset() error {
	resp, err := c.request(buildPacket(PacketTypeCommonCmd, []byte{CO_WR_RESET}, nil))
	if err != nil {
		return fmt.Errorf("CO_WR_RESET: %w", err)
	}
	if len(resp.Data) > 0 && resp.Data[0] == RET_OK {
		log.Println("Gateway reset command accepted")
		return nil
	}
	return fmt.Errorf("reset command failed with code: 0x%02X", resp.Data[0])
}

// ReadBaseID reads the gateway base ID for transmitting
func (c *Client) ReadBaseID() error {
	resp, err := c.request(buildPacket(PacketTypeCommonCmd, []byte{CO_RD_IDBASE}, nil))
	if err != nil {
		return fmt.Errorf("CO_RD_IDBASE: %w", err)
	}

	// Response: Return code (1) + Base ID (4) + Remaining write cycles (1)
	if len(resp.Data) < 5 {
		return fmt.Errorf("invalid base ID response length: %d", len(resp.Data))
	}
	if resp.Data[0] != RET_OK {
		return fmt.Errorf("read base ID failed with code: 0x%02X", resp.Data[0])
	}
	c.baseID = make([]byte, 4)
	copy(c.baseID, resp.Data[1:5])
	log.Printf("Gateway Base ID: %s", FormatID(c.baseID))
	return nil
}

// GetBaseID returns the gateway base ID as formatted string
func (c *Client) GetBaseID() string {
	return FormatID(c.baseID)
}

// BaseID returns a copy of the gateway base ID bytes, or nil before
// ReadBaseID succeeds.
func (c *Client) BaseID() []byte {
	if len(c.baseID) != 4 {
		return nil
	}
	id := make([]byte, 4)
	copy(id, c.baseID)
	return id
}

// SenderIDWithOffset derives a transmit identity from the gateway base ID.
// Gateways allow 128 derived sender identities above their base ID.
func (c *Client) SenderIDWithOffset(offset int) ([]byte, error) {
	if len(c.baseID) != 4 {
		return nil, fmt.Errorf("base ID not read yet")
	}
	if offset < 0 || offset > 127 {
		return nil, fmt.Errorf("sender ID offset out of range: %d", offset)
	}
	id := make([]byte, 4)
	copy(id, c.baseID)
	id[3] = byte(int(id[3]) + offset)
	return id, nil
}

// DisableRepeater disables the gateway repeater function
func (c *Client) DisableRepeater() error {
	// CO_WR_REPEATER: RepeaterEnable(1) + RepeaterLevel(1)
	resp, err := c.request(buildPacket(PacketTypeCommonCmd, []byte{CO_WR_REPEATER, 0x00, 0x00}, nil))
	if err != nil {
		return fmt.Errorf("CO_WR_REPEATER: %w", err)
	}
	if len(resp.Data) > 0 && resp.Data[0] == RET_OK {
		log.Println("Repeater disabled")
		return nil
	}
	return fmt.Errorf("disable repeater failed with code: 0x%02X", resp.Data[0])
}

// SetWaitMaturity enables waiting for telegram maturity before processing,
// so telegrams are fully received before being forwarded
func (c *Client) SetWaitMaturity(enable bool) error {
	var maturity byte = 0x00
	if enable {
		maturity = 0x01
	}
	resp, err := c.request(buildPacket(PacketTypeCommonCmd, []byte{CO_WR_WAIT_MATURITY, maturity}, nil))
	if err != nil {
		return fmt.Errorf("CO_WR_WAIT_MATURITY: %w", err)
	}
	if len(resp.Data) > 0 && resp.Data[0] == RET_OK {
		log.Printf("Wait maturity set to %v", enable)
		return nil
	}
	return fmt.Errorf("set wait maturity failed with code: 0x%02X", resp.Data[0])
}

// Initialize performs the standard gateway initialization sequence:
// read IDs, read version, disable repeater, enable maturity wait.
func (c *Client) Initialize() error {
	// Base ID first, it is needed for sending
	if err := c.ReadBaseID(); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	if _, err := c.ReadVersion(); err != nil {
		log.Printf("Warning: failed to read version: %v", err)
	}

	if err := c.DisableRepeater(); err != nil {
		log.Printf("Warning: failed to disable repeater: %v", err)
	}

	if err := c.SetWaitMaturity(true); err != nil {
		log.Printf("Warning: failed to set wait maturity: %v", err)
	}

	return nil
}
