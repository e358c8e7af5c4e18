package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"
)

// 对本地 API 并发切换同一条动态的点赞，结束后检查计数与标记是否一致
// 需要 rankkingsd 已登录
var httpClient *http.Client

func init() {
	// 优化 HTTP Client 配置
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 500
	t.MaxIdleConnsPerHost = 500
	httpClient = &http.Client{
		Transport: t,
		Timeout:   10 * time.Second,
	}
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type postView struct {
	ID        uint `json:"id"`
	LikeCount int  `json:"likesCount"`
	IsLiked   bool `json:"isLiked"`
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "rankkingsd base URL")
	postID := flag.Uint("post", 1, "post id to toggle")
	total := flag.Int("n", 1000, "number of concurrent toggles")
	flag.Parse()

	before, err := getPost(*baseURL, *postID)
	if err != nil {
		fmt.Printf("读取动态失败: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("开始压测：%d 个并发点赞切换 (PostID: %d, 初始 likes=%d liked=%v)...\n",
		*total, *postID, before.LikeCount, before.IsLiked)

	var wg sync.WaitGroup
	var mu sync.Mutex
	successCount, failCount := 0, 0
	start := time.Now()

	for i := 0; i < *total; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok := toggleLike(*baseURL, *postID)
			mu.Lock()
			if ok {
				successCount++
			} else {
				failCount++
			}
			mu.Unlock()
		}()
	}

	wg.Wait()
	duration := time.Since(start)

	after, err := getPost(*baseURL, *postID)
	if err != nil {
		fmt.Printf("读取动态失败: %v\n", err)
		os.Exit(1)
	}

	// 成功次数为偶数时回到初始状态
	wantLiked := before.IsLiked != (successCount%2 == 1)
	wantCount := before.LikeCount
	if wantLiked != before.IsLiked {
		if wantLiked {
			wantCount++
		} else {
			wantCount--
		}
	}

	fmt.Println("--------------------------------------------------")
	fmt.Printf("压测结束，耗时: %v\n", duration)
	fmt.Printf("QPS: %.2f\n", float64(*total)/duration.Seconds())
	fmt.Printf("成功: %d, 失败: %d\n", successCount, failCount)
	fmt.Printf("最终 likes=%d liked=%v (预期 likes=%d liked=%v)\n", after.LikeCount, after.IsLiked, wantCount, wantLiked)
	fmt.Println("--------------------------------------------------")

	if after.LikeCount != wantCount || after.IsLiked != wantLiked {
		fmt.Println("计数与标记不一致")
		os.Exit(1)
	}
}

func getPost(baseURL string, id uint) (*postView, error) {
	resp, err := httpClient.Get(fmt.Sprintf("%s/posts/%d", baseURL, id))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, env.Message)
	}
	var p postView
	if err := json.Unmarshal(env.Data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func toggleLike(baseURL string, id uint) bool {
	resp, err := httpClient.Post(fmt.Sprintf("%s/posts/%d/like", baseURL, id), "application/json", nil)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return false
	}
	return env.Code == 0
}
