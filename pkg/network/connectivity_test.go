package network

import "testing"

func TestConnectionTypeQualityOrdering(t *testing.T) {
	if ConnectionOffline.QualityScore() != 0 {
		t.Errorf("offline quality = %d, want 0", ConnectionOffline.QualityScore())
	}
	if ConnectionWiFi.QualityScore() <= ConnectionCellular3G.QualityScore() {
		t.Errorf("expected WiFi quality > 3G quality")
	}
	if ConnectionCellular4G.QualityScore() <= ConnectionCellular3G.QualityScore() {
		t.Errorf("expected 4G quality > 3G quality")
	}
}

func TestConnectionTypeIsMetered(t *testing.T) {
	cases := map[ConnectionType]bool{
		ConnectionCellular4G: true,
		ConnectionCellular2G: true,
		ConnectionWiFi:       false,
		ConnectionEthernet:   false,
	}
	for conn, want := range cases {
		if got := conn.IsMetered(); got != want {
			t.Errorf("IsMetered(%v) = %v, want %v", conn, got, want)
		}
	}
}

func TestOfflineStatus(t *testing.T) {
	s := Offline()
	if s.IsOnline {
		t.Errorf("expected offline status to report IsOnline=false")
	}
	if s.QualityScore != 0 || s.DownlinkKbps != 0 {
		t.Errorf("expected zeroed metrics for offline status, got %+v", s)
	}
}

func TestFromConnectionType(t *testing.T) {
	s := FromConnectionType(ConnectionCellular4G)
	if !s.IsOnline || !s.IsMetered {
		t.Errorf("expected 4G status to be online and metered, got %+v", s)
	}
	if s.DownlinkKbps == 0 {
		t.Errorf("expected nonzero downlink estimate")
	}
	if s.QualityScore < 70 {
		t.Errorf("expected quality score >= 70, got %d", s.QualityScore)
	}
}

func TestSuggestedTimeoutFasterOnBetterConnections(t *testing.T) {
	fast := FromConnectionType(ConnectionWiFi)
	slow := FromConnectionType(ConnectionCellular2G)
	if fast.SuggestedTimeout() >= slow.SuggestedTimeout() {
		t.Errorf("expected WiFi timeout < 2G timeout, got %v vs %v", fast.SuggestedTimeout(), slow.SuggestedTimeout())
	}
}

func TestSuggestedImageQualityScalesWithConnection(t *testing.T) {
	status2G := FromConnectionType(ConnectionCellular2G)
	status4G := FromConnectionType(ConnectionCellular4G)
	statusWiFi := FromConnectionType(ConnectionWiFi)

	if status2G.SuggestedImageQuality() != ImageLow {
		t.Errorf("expected 2G to suggest ImageLow, got %v", status2G.SuggestedImageQuality())
	}
	if status4G.SuggestedImageQuality().MaxWidth() <= status2G.SuggestedImageQuality().MaxWidth() {
		t.Errorf("expected 4G max width > 2G max width")
	}
	if statusWiFi.SuggestedImageQuality().MaxWidth() < status4G.SuggestedImageQuality().MaxWidth() {
		t.Errorf("expected WiFi max width >= 4G max width")
	}
}

func TestSaveDataOverridesImageQuality(t *testing.T) {
	status := FromConnectionType(ConnectionWiFi)
	status.SaveData = true
	if status.SuggestedImageQuality() != ImageLow {
		t.Errorf("expected save-data override to force ImageLow, got %v", status.SuggestedImageQuality())
	}
}

func TestImageQualityPreferredFormats(t *testing.T) {
	if ImageLow.PreferredFormat() != "jpeg" {
		t.Errorf("ImageLow format = %q, want jpeg", ImageLow.PreferredFormat())
	}
	if ImageMedium.PreferredFormat() != "webp" {
		t.Errorf("ImageMedium format = %q, want webp", ImageMedium.PreferredFormat())
	}
	if ImageOriginal.PreferredFormat() != "avif" {
		t.Errorf("ImageOriginal format = %q, want avif", ImageOriginal.PreferredFormat())
	}
}

func TestParseConnectionType(t *testing.T) {
	cases := map[string]ConnectionType{
		"wifi":     ConnectionWiFi,
		"WIFI":     ConnectionWiFi,
		"4g":       ConnectionCellular4G,
		"lte":      ConnectionCellular4G,
		"ethernet": ConnectionEthernet,
		"unknown":  ConnectionUnknown,
		"":         ConnectionUnknown,
	}
	for input, want := range cases {
		if got := ParseConnectionType(input); got != want {
			t.Errorf("ParseConnectionType(%q) = %v, want %v", input, got, want)
		}
	}
}
