package fetch

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gocolly/colly/v2"

	"github.com/RecoveryAshes/SocialPeek/internal/models"
	"github.com/RecoveryAshes/SocialPeek/internal/utils"
)

// StaticFetcher 静态抓取器(使用Colly)
// 不执行页面JavaScript, 适用于服务端直出内容的版式
type StaticFetcher struct {
	timeout        time.Duration
	headerProvider models.HeaderProvider
}

// NewStaticFetcher 创建静态抓取器
func NewStaticFetcher(timeout time.Duration, headerProvider models.HeaderProvider) *StaticFetcher {
	return &StaticFetcher{
		timeout:        timeout,
		headerProvider: headerProvider,
	}
}

// FetchHTML 抓取目标URL的原始HTML
//
// 每次抓取使用独立的collector, 避免Colly的访问历史
// 阻止对同一URL的再次抓取
func (sf *StaticFetcher) FetchHTML(ctx context.Context, pageURL string) (string, error) {
	c := colly.NewCollector(colly.AllowURLRevisit())

	// 跳过证书验证,允许访问自签名、过期或主机名不匹配的HTTPS站点
	c.SetClient(&http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true,
			},
		},
		Timeout: sf.timeout,
	})
	c.SetRequestTimeout(sf.timeout)

	if err := ctx.Err(); err != nil {
		return "", err
	}

	var html string
	var fetchErr error

	c.OnRequest(func(r *colly.Request) {
		// 应用自定义HTTP头部
		if sf.headerProvider != nil {
			headers, err := sf.headerProvider.GetHeaders()
			if err != nil {
				utils.Warnf("获取HTTP头部失败: %v", err)
			} else {
				for name, values := range headers {
					if len(values) > 0 {
						r.Headers.Set(name, values[0])
					}
				}
			}
		}
		utils.Debugf("静态抓取: %s", r.URL.String())
	})

	c.OnResponse(func(r *colly.Response) {
		body := r.Body
		if contentEncoding := r.Headers.Get("Content-Encoding"); contentEncoding != "" {
			decompressed, err := decompressResponse(contentEncoding, r.Body)
			if err != nil {
				utils.Warnf("解压响应失败 [%s] (编码=%s): %v", pageURL, contentEncoding, err)
				// 解压失败,仍然尝试使用原始body
			} else {
				body = decompressed
			}
		}
		if r.StatusCode >= 400 {
			fetchErr = models.NewTransientError("static_fetch",
				fmt.Errorf("HTTP %d", r.StatusCode))
			return
		}
		html = string(body)
	})

	c.OnError(func(r *colly.Response, err error) {
		fetchErr = models.NewTransientError("static_fetch", err)
	})

	if err := c.Visit(pageURL); err != nil {
		return "", models.NewTransientError("static_fetch", err)
	}
	c.Wait()

	if fetchErr != nil {
		return "", fetchErr
	}
	return html, nil
}

// decompressResponse 根据Content-Encoding头部解压响应体
// 支持 gzip, deflate, br (Brotli) 三种压缩格式
func decompressResponse(contentEncoding string, body []byte) ([]byte, error) {
	encoding := strings.ToLower(strings.TrimSpace(contentEncoding))

	switch encoding {
	case "gzip":
		reader, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip解压失败: %w", err)
		}
		defer reader.Close()

		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("gzip读取失败: %w", err)
		}
		return decompressed, nil

	case "deflate":
		reader := flate.NewReader(bytes.NewReader(body))
		defer reader.Close()

		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("deflate读取失败: %w", err)
		}
		return decompressed, nil

	case "br":
		reader := brotli.NewReader(bytes.NewReader(body))
		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("brotli读取失败: %w", err)
		}
		return decompressed, nil

	case "":
		return body, nil

	default:
		// 未知编码,返回警告但仍然返回原始内容
		utils.Warnf("未知的Content-Encoding: %s", contentEncoding)
		return body, nil
	}
}
