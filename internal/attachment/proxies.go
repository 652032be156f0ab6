package attachment

import (
	"fmt"

	"charattach/internal/mathutil"
	"charattach/internal/proxy"
)

// ProxyHandle is a stable reference to a manager proxy.
type ProxyHandle struct {
	Index uint32
	Gen   uint32
}

func (h ProxyHandle) IsValid() bool { return h.Gen != 0 }

type proxySlot struct {
	p   *proxy.Proxy
	gen uint32
}

// CreateProxy adds a collision proxy bound to joint. On failure it logs a
// warning and returns the zero handle.
func (m *Manager) CreateProxy(name, joint string, params mathutil.Vec4, purpose proxy.Purpose, absDefault mathutil.QuatT) (ProxyHandle, error) {
	h, err := m.createProxy(name, joint, params, purpose, absDefault)
	if err != nil {
		Logger().Warn("attachment: proxy not created", "name", name, "joint", joint, "err", err)
	}
	return h, err
}

func (m *Manager) createProxy(name, joint string, params mathutil.Vec4, purpose proxy.Purpose, absDefault mathutil.QuatT) (ProxyHandle, error) {
	if name == "" {
		return ProxyHandle{}, ErrEmptyName
	}
	crc := proxy.NameCRC(name)
	if _, ok := m.proxyByCRC[crc]; ok {
		return ProxyHandle{}, fmt.Errorf("%w: proxy %q", ErrNameInUse, name)
	}
	if m.skel == nil {
		return ProxyHandle{}, fmt.Errorf("%w: %q", ErrUnknownJoint, joint)
	}
	p := proxy.New(name, joint, params, purpose, absDefault)
	if !p.Project(m.skel) {
		return ProxyHandle{}, fmt.Errorf("%w: %q", ErrUnknownJoint, joint)
	}
	if m.pose != nil {
		p.UpdateFromJoint(m.pose.JointAbsolute(p.JointID))
		p.ModelRelativePrev = p.ModelRelative
	}

	var idx uint32
	if n := len(m.proxyFree); n > 0 {
		idx = m.proxyFree[n-1]
		m.proxyFree = m.proxyFree[:n-1]
	} else {
		idx = uint32(len(m.proxies))
		m.proxies = append(m.proxies, proxySlot{})
	}
	s := &m.proxies[idx]
	s.gen++
	s.p = p
	h := ProxyHandle{Index: idx, Gen: s.gen}
	m.proxyOrder = append(m.proxyOrder, h)
	m.proxyByCRC[crc] = h
	return h, nil
}

func (m *Manager) ProxyCount() int { return len(m.proxyOrder) }

// GetProxyByHandle resolves h, nil once the proxy is removed.
func (m *Manager) GetProxyByHandle(h ProxyHandle) *proxy.Proxy {
	if !h.IsValid() || int(h.Index) >= len(m.proxies) {
		return nil
	}
	s := m.proxies[h.Index]
	if s.gen != h.Gen {
		return nil
	}
	return s.p
}

func (m *Manager) GetProxyByIndex(i int) *proxy.Proxy {
	if i < 0 || i >= len(m.proxyOrder) {
		return nil
	}
	return m.GetProxyByHandle(m.proxyOrder[i])
}

func (m *Manager) GetProxyByName(name string) *proxy.Proxy {
	return m.GetProxyByNameCRC(proxy.NameCRC(name))
}

func (m *Manager) GetProxyByNameCRC(crc uint32) *proxy.Proxy {
	return m.GetProxyByHandle(m.proxyByCRC[crc])
}

// GetProxyHandleByName returns the zero handle for unknown names.
func (m *Manager) GetProxyHandleByName(name string) ProxyHandle {
	return m.proxyByCRC[proxy.NameCRC(name)]
}

func (m *Manager) proxyHandleByCRC(crc uint32) ProxyHandle { return m.proxyByCRC[crc] }

func (m *Manager) RemoveProxyByHandle(h ProxyHandle) bool {
	p := m.GetProxyByHandle(h)
	if p == nil {
		return false
	}
	s := &m.proxies[h.Index]
	s.p = nil
	s.gen++
	m.proxyFree = append(m.proxyFree, h.Index)
	delete(m.proxyByCRC, p.NameCRC)
	for i, x := range m.proxyOrder {
		if x == h {
			m.proxyOrder = append(m.proxyOrder[:i], m.proxyOrder[i+1:]...)
			break
		}
	}
	return true
}

func (m *Manager) RemoveProxyByName(name string) bool {
	return m.RemoveProxyByHandle(m.GetProxyHandleByName(name))
}

func (m *Manager) RemoveProxyByNameCRC(crc uint32) bool {
	return m.RemoveProxyByHandle(m.proxyByCRC[crc])
}

// RemoveAllProxies drops every proxy.
func (m *Manager) RemoveAllProxies() {
	for len(m.proxyOrder) > 0 {
		m.RemoveProxyByHandle(m.proxyOrder[len(m.proxyOrder)-1])
	}
}

// eachProxy visits live proxies in creation order.
func (m *Manager) eachProxy(fn func(p *proxy.Proxy)) {
	for _, h := range m.proxyOrder {
		if p := m.GetProxyByHandle(h); p != nil {
			fn(p)
		}
	}
}
