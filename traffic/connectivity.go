package traffic

import (
	"context"
	"net"
	"time"
)

// 网络可达性检查
type Connectivity interface {
	Reachable(ctx context.Context) bool
}

type ConnectivityFunc func(ctx context.Context) bool

func (f ConnectivityFunc) Reachable(ctx context.Context) bool {
	return f(ctx)
}

// 始终在线，用于模拟数据源
var AlwaysOnline = ConnectivityFunc(func(context.Context) bool { return true })

// 通过TCP拨号判断网络是否可达
type DialProbe struct {
	Addr    string
	Timeout time.Duration
}

func (p DialProbe) Reachable(ctx context.Context) bool {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", p.Addr)
	if err != nil {
		log.Debugf("probe %s unreachable: %v", p.Addr, err)
		return false
	}
	conn.Close()
	return true
}
