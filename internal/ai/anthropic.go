package ai

import (
    "bytes"
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "net/http"
    "os"
    "strings"
)

type AnthropicClient struct{ http *http.Client; apiKey string }

func NewAnthropicClient() *AnthropicClient {
    return &AnthropicClient{http: &http.Client{}, apiKey: os.Getenv("ANTHROPIC_API_KEY")}
}
func (c *AnthropicClient) Name() string { return "anthropic" }

type anthropicContent struct {
    Type   string            `json:"type"`
    Text   string            `json:"text,omitempty"`
    Source map[string]string `json:"source,omitempty"`
}

type anthropicMessage struct {
    Role    string             `json:"role"`
    Content []anthropicContent `json:"content"`
}

type anthropicMsgReq struct {
    Model     string             `json:"model"`
    MaxTokens int                `json:"max_tokens"`
    System    string             `json:"system,omitempty"`
    Messages  []anthropicMessage `json:"messages"`
}

type anthropicMsgResp struct {
    Content []struct{ Text string `json:"text"` } `json:"content"`
    Usage   struct {
        InputTokens  int `json:"input_tokens"`
        OutputTokens int `json:"output_tokens"`
    } `json:"usage"`
}

func (c *AnthropicClient) GenerateFilename(ctx context.Context, req Request) (Response, error) {
    if c.apiKey == "" { return Response{}, errors.New("missing ANTHROPIC_API_KEY") }

    var content []anthropicContent
    if req.ImageBase64 != "" {
        content = append(content, anthropicContent{
            Type: "image",
            Source: map[string]string{
                "type":       "base64",
                "media_type": req.ImageMIME,
                "data":       req.ImageBase64,
            },
        })
    }
    userPrompt := "Suggest a filename for this document."
    if req.Text != "" {
        userPrompt = fmt.Sprintf("DOCUMENT CONTENT:\n%s\n\nSuggest a filename for this document.", req.Text)
    }
    content = append(content, anthropicContent{Type: "text", Text: userPrompt})

    payload := anthropicMsgReq{
        Model:     req.Model,
        MaxTokens: 64,
        System:    systemPrompt,
        Messages:  []anthropicMessage{{Role: "user", Content: content}},
    }
    body, _ := json.Marshal(payload)
    httpReq, _ := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.anthropic.com/v1/messages", bytes.NewReader(body))
    httpReq.Header.Set("x-api-key", c.apiKey)
    httpReq.Header.Set("anthropic-version", "2023-06-01")
    httpReq.Header.Set("Content-Type", "application/json")

    resp, err := c.http.Do(httpReq)
    if err != nil { return Response{}, err }
    defer resp.Body.Close()

    if resp.StatusCode == 429 { return Response{}, ErrRateLimited }
    if resp.StatusCode < 200 || resp.StatusCode >= 300 {
        b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
        return Response{}, &HTTPError{StatusCode: resp.StatusCode, Body: string(b), Provider: c.Name()}
    }

    var r anthropicMsgResp
    if err := json.NewDecoder(resp.Body).Decode(&r); err != nil { return Response{}, err }
    if len(r.Content) == 0 { return Response{}, &ValidationError{Message: "no content in response"} }

    name := strings.TrimSpace(r.Content[0].Text)
    if name == "" { return Response{}, &ValidationError{Message: "empty filename in response"} }

    return Response{
        Filename:  name,
        TokensIn:  r.Usage.InputTokens,
        TokensOut: r.Usage.OutputTokens,
    }, nil
}
