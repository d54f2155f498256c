package provider

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// DefaultMaxFetchBytes — предел размера скачиваемого источника.
const DefaultMaxFetchBytes = 32 << 20

// Fetched — содержимое источника, загруженное в память.
type Fetched struct {
	Data        []byte
	ContentType string
}

// Fetcher скачивает исходные изображения для transfer.
//
// Адреса источников задают пользователи, поэтому запросы к хостам вне
// списка доверенных идут через клиент, который не соединяется с
// loopback, частными, link-local и прочими непубличными адресами.
// Проверка выполняется после DNS-разрешения, на каждом соединении,
// включая редиректы.
type Fetcher struct {
	trusted  *http.Client
	guarded  *http.Client
	allowed  map[string]bool
	maxBytes int64
	now      func() time.Time
}

// NewHTTPClient создаёт HTTP-клиент без общего таймаута: таймаут задаётся
// контекстом каждой попытки. caCertPath — опциональный CA для TLS.
func NewHTTPClient(caCertPath string) (*http.Client, error) {
	client := &http.Client{}
	if caCertPath == "" {
		return client, nil
	}

	tlsConfig, err := buildTLSConfig(caCertPath)
	if err != nil {
		return nil, fmt.Errorf("загрузка CA-сертификата: %w", err)
	}
	client.Transport = &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		TLSClientConfig: tlsConfig,
	}
	return client, nil
}

// buildTLSConfig создаёт TLS-конфигурацию с кастомным CA.
func buildTLSConfig(caCertPath string) (*tls.Config, error) {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, fmt.Errorf("чтение CA-сертификата: %w", err)
	}

	caCertPool, err := x509.SystemCertPool()
	if err != nil {
		caCertPool = x509.NewCertPool()
	}
	caCertPool.AppendCertsFromPEM(caCert)

	return &tls.Config{RootCAs: caCertPool}, nil
}

// NewFetcher создаёт загрузчик источников.
// maxBytes <= 0 — используется DefaultMaxFetchBytes.
// allowedHosts — хосты, которым разрешены внутренние адреса
// (например, собственный маршрут /media временной области).
func NewFetcher(httpClient *http.Client, maxBytes int64, allowedHosts ...string) *Fetcher {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFetchBytes
	}
	allowed := make(map[string]bool, len(allowedHosts))
	for _, h := range allowedHosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			allowed[h] = true
		}
	}
	return &Fetcher{
		trusted:  httpClient,
		guarded:  guardedClient(httpClient),
		allowed:  allowed,
		maxBytes: maxBytes,
		now:      time.Now,
	}
}

// guardedClient копирует клиент с транспортом, отклоняющим соединения
// с непубличными адресами. Прокси отключается: иначе проверялся бы адрес прокси.
func guardedClient(c *http.Client) *http.Client {
	var transport *http.Transport
	if t, ok := c.Transport.(*http.Transport); ok {
		transport = t.Clone()
	} else {
		transport = http.DefaultTransport.(*http.Transport).Clone()
	}
	transport.Proxy = nil
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
		Control:   rejectInternalDial,
	}
	transport.DialContext = dialer.DialContext

	guarded := *c
	guarded.Transport = transport
	return &guarded
}

// rejectInternalDial вызывается для уже разрешённого адреса перед connect.
func rejectInternalDial(_, address string, _ syscall.RawConn) error {
	ap, err := netip.ParseAddrPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrSourceBlocked, address)
	}
	if !IsPublicAddr(ap.Addr()) {
		return fmt.Errorf("%w: %s", ErrSourceBlocked, ap.Addr())
	}
	return nil
}

// sharedAddressSpace — 100.64.0.0/10 (CGNAT, RFC 6598).
var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

// IsPublicAddr — адрес глобальный unicast и не из частных диапазонов.
func IsPublicAddr(a netip.Addr) bool {
	a = a.Unmap()
	return a.IsGlobalUnicast() && !a.IsPrivate() && !sharedAddressSpace.Contains(a)
}

// clientFor выбирает клиент по хосту источника.
func (f *Fetcher) clientFor(host string) (*http.Client, error) {
	host = strings.ToLower(host)
	if f.allowed[host] {
		return f.trusted, nil
	}
	if addr, err := netip.ParseAddr(host); err == nil && !IsPublicAddr(addr) {
		return nil, fmt.Errorf("%w: %s", ErrSourceBlocked, host)
	}
	return f.guarded, nil
}

// Fetch скачивает источник целиком в память.
// К URL добавляется параметр t=<unix ms>, чтобы обойти кэши CDN.
func (f *Fetcher) Fetch(ctx context.Context, sourceURL string) (*Fetched, error) {
	u, err := url.Parse(sourceURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("некорректный URL источника: %q", sourceURL)
	}
	client, err := f.clientFor(u.Hostname())
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("t", strconv.FormatInt(f.now().UnixMilli(), 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("создание запроса к источнику: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("скачивание %s: %w", sourceURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("скачивание %s: %w", sourceURL,
			&StatusError{StatusCode: resp.StatusCode, Message: string(body)})
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("чтение тела %s: %w", sourceURL, err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("источник %s превышает предел %d байт", sourceURL, f.maxBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("источник %s пуст", sourceURL)
	}

	return &Fetched{Data: data, ContentType: resp.Header.Get("Content-Type")}, nil
}
