package discovery

import (
	"fmt"
	"sort"
	"strings"
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeTXT creates the TXT records for info.
func EncodeTXT(info ServiceInfo) TXTRecordMap {
	txt := TXTRecordMap{TXTKeyName: info.Name}
	if info.Version != "" {
		txt[TXTKeyVersion] = info.Version
	}
	if info.Protocol != "" {
		txt[TXTKeyProto] = info.Protocol
	}
	return txt
}

// DecodeTXT parses feeder TXT records. The port is not part of TXT data.
func DecodeTXT(txt TXTRecordMap) (ServiceInfo, error) {
	name, ok := txt[TXTKeyName]
	if !ok {
		return ServiceInfo{}, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyName)
	}
	if err := ValidateInstanceName(name); err != nil {
		return ServiceInfo{}, fmt.Errorf("%w: %w", ErrInvalidTXTRecord, err)
	}
	return ServiceInfo{Name: name, Version: txt[TXTKeyVersion], Protocol: txt[TXTKeyProto]}, nil
}

// TXTRecordsToStrings converts a TXTRecordMap to "key=value" strings in
// key order.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	result := make([]string, 0, len(txt))
	for k, v := range txt {
		result = append(result, k+"="+v)
	}
	sort.Strings(result)
	return result
}

// StringsToTXTRecords parses "key=value" strings into a TXTRecordMap.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		k, v, _ := strings.Cut(s, "=")
		if k != "" {
			txt[k] = v
		}
	}
	return txt
}

// ValidateInstanceName checks if an instance name is valid for mDNS.
func ValidateInstanceName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidName)
	}
	if len(name) > MaxInstanceNameLen {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidName, MaxInstanceNameLen)
	}
	return nil
}
