package models

import "net"

// ChannelConfig is the persisted configuration of one monitored IPTV channel.
// Rows are loaded once by the supervisor at startup and handed to monitors;
// the probe pipeline treats the values as immutable for the lifetime of a run.
type ChannelConfig struct {
	ID                  string  `gorm:"column:id;primarykey;type:text" json:"id"`
	Name                string  `gorm:"column:name" json:"name"`
	MulticastIP         string  `gorm:"column:multicast_ip" json:"multicast_ip"`
	MulticastPort       int     `gorm:"column:multicast_port;default:1234" json:"multicast_port"`
	GroupName           string  `gorm:"column:group_name;default:default" json:"group_name"`
	SortOrder           int     `gorm:"column:sort_order;default:0" json:"sort_order"`
	Enabled             *bool   `gorm:"column:enabled;default:1" json:"enabled"`
	SimVideo            string  `gorm:"column:sim_video" json:"sim_video,omitempty"`
	ExpectedBitrateKbps float64 `gorm:"column:expected_bitrate_kbps;default:0" json:"expected_bitrate_kbps"`
	CreatedAt           Time    `gorm:"column:created_at" json:"created_at"`
}

// TableName returns the table name for ChannelConfig.
func (ChannelConfig) TableName() string {
	return "channels"
}

// IsEnabled returns whether the channel should be probed, defaulting to true
// when the column is unset (matches the schema's DEFAULT 1).
func (c ChannelConfig) IsEnabled() bool {
	return BoolVal(c.Enabled)
}

// Validate checks the channel configuration for the invariants named in
// the data model: a non-empty id, a multicast address in 224.0.0.0/4, and
// a port in the valid TCP/UDP range.
func (c ChannelConfig) Validate() error {
	if c.ID == "" {
		return ErrChannelIDRequired
	}
	if c.Name == "" {
		return ErrNameRequired
	}
	if !isMulticastIPv4(c.MulticastIP) {
		return ErrInvalidMulticastGroup
	}
	if c.MulticastPort < 1 || c.MulticastPort > 65535 {
		return ErrInvalidPort
	}
	return nil
}

func isMulticastIPv4(addr string) bool {
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return false
	}
	return ip4.IsMulticast()
}
