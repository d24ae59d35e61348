package entity

import (
	"fmt"
	"net"
	"net/url"
)

// maxURLLength bounds preview and cover URLs from the catalog payloads.
const maxURLLength = 2048

// privateRanges lists the networks a catalog URL must never resolve into:
// private networks, link-local (which includes cloud metadata endpoints)
// and carrier-grade NAT.
var privateRanges = func() []*net.IPNet {
	cidrs := []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"169.254.0.0/16",
		"100.64.0.0/10",
	}
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, subnet, _ := net.ParseCIDR(c)
		nets = append(nets, subnet)
	}
	return nets
}()

// ValidatePreviewURL checks a preview or cover URL before the pipeline
// downloads from it. The catalog payload is external input, so a URL that
// resolves into a private network is rejected to keep the downloader from
// being steered at internal services.
func ValidatePreviewURL(rawURL string) error {
	if rawURL == "" {
		return &ValidationError{Field: "url", Message: "URL is required"}
	}
	if len(rawURL) > maxURLLength {
		return &ValidationError{
			Field:   "url",
			Message: fmt.Sprintf("url must not exceed %d characters", maxURLLength),
		}
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return &ValidationError{Field: "url", Message: "URL must use http or https scheme"}
	}
	if parsed.Host == "" {
		return &ValidationError{Field: "url", Message: "URL must have a valid host"}
	}

	ips, err := net.LookupIP(parsed.Hostname())
	if err != nil {
		// 解決できないホストはダウンロード時に自然に失敗する
		return nil
	}
	for _, ip := range ips {
		if isPrivateIP(ip) {
			return &ValidationError{Field: "url", Message: "url cannot point to private network"}
		}
	}
	return nil
}

func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() {
		return true
	}
	for _, subnet := range privateRanges {
		if subnet.Contains(ip) {
			return true
		}
	}
	return false
}
