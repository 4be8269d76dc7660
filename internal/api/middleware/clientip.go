// clientip.go — определение IP клиента для лимитов и логов.
// X-Forwarded-For учитывается только от доверенных прокси (NK_TRUSTED_PROXIES).
package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ContextKeyClientIP — IP клиента, вычисленный RealIP.
const ContextKeyClientIP contextKey = "client_ip"

// TrustedProxies — адреса балансировщиков, которым разрешено передавать X-Forwarded-For.
type TrustedProxies struct {
	prefixes []netip.Prefix
}

// ParseTrustedProxies разбирает список CIDR или одиночных адресов.
// Пустой список — заголовкам не доверяем.
func ParseTrustedProxies(entries []string) (*TrustedProxies, error) {
	t := &TrustedProxies{}
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if strings.Contains(e, "/") {
			p, err := netip.ParsePrefix(e)
			if err != nil {
				return nil, fmt.Errorf("некорректная подсеть прокси %q: %w", e, err)
			}
			t.prefixes = append(t.prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(e)
		if err != nil {
			return nil, fmt.Errorf("некорректный адрес прокси %q: %w", e, err)
		}
		addr = addr.Unmap()
		t.prefixes = append(t.prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return t, nil
}

func (t *TrustedProxies) contains(addr netip.Addr) bool {
	if t == nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range t.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// Resolve возвращает IP клиента. Если соединение пришло от доверенного прокси,
// X-Forwarded-For читается справа налево до первого недоверенного адреса:
// левые элементы цепочки клиент может написать сам.
func (t *TrustedProxies) Resolve(r *http.Request) string {
	host := remoteHost(r)
	peer, err := netip.ParseAddr(host)
	if err != nil || !t.contains(peer) {
		return host
	}

	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		addr, err := netip.ParseAddr(hop)
		if err != nil {
			// Мусор в цепочке: дальше влево верить нельзя
			return host
		}
		if !t.contains(addr) {
			return addr.Unmap().String()
		}
	}
	return host
}

// RealIP вычисляет IP клиента один раз и кладёт его в контекст.
func RealIP(t *TrustedProxies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), ContextKeyClientIP, t.Resolve(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientIP возвращает IP, вычисленный RealIP, а без него — адрес соединения.
func ClientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(ContextKeyClientIP).(string); ok && ip != "" {
		return ip
	}
	return remoteHost(r)
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
