package aoscx

import (
	"regexp"
	"strings"

	"github.com/aoscxcliconf/aoscxcliconf/addone/cliconf"
)

var (
	versionRe  = regexp.MustCompile(`Version (\S+)`)
	modelRe    = regexp.MustCompile(`(?m)^MODEL: (\S+)\),`)
	hostnameRe = regexp.MustCompile(`(?m)^Hostname is (.+)`)
)

// GetDeviceInfo 从 show version / show hostname 派生设备识别字段
// 未匹配到的字段不出现在结果映射中
func (p *Plugin) GetDeviceInfo(s cliconf.Sender) (cliconf.DeviceInfo, error) {
	info := cliconf.DeviceInfo{
		cliconf.KeyNetworkOS: "aruba",
	}

	reply, err := p.Get(s, "show version", nil)
	if err != nil {
		return nil, err
	}
	data := strings.TrimSpace(reply)

	if m := versionRe.FindStringSubmatch(data); m != nil {
		info[cliconf.KeyNetworkOSVersion] = m[1]
	}
	if m := modelRe.FindStringSubmatch(data); m != nil {
		info[cliconf.KeyNetworkOSModel] = m[1]
	}

	reply, err = p.Get(s, "show hostname", nil)
	if err != nil {
		return nil, err
	}
	data = strings.TrimSpace(reply)

	if m := hostnameRe.FindStringSubmatch(data); m != nil {
		info[cliconf.KeyNetworkOSHostname] = m[1]
	}

	return info, nil
}
