package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"PowerPulse/internal/agent"
	"PowerPulse/internal/llm"
	"PowerPulse/internal/llm/openai"
	"PowerPulse/internal/llm/static"
	"PowerPulse/internal/storage/mysql"
	"PowerPulse/internal/supervisor"
	"PowerPulse/pkg/logger"
)

const usage = `powerpulse - 两周用电数据对比分析工具

用法:
  powerpulse analyze --week1 <file> --week2 <file>   直接执行两周对比分析
  powerpulse ask <query...>                          用自然语言提问，由路由器分发

环境变量:
  OPENAI_API_KEY    OpenAI 密钥，默认的叙述生成方式
  POWERPULSE_LLM    设为 static 时改用内置的离线摘要
  POWERPULSE_DATA   分析历史的存放目录，默认 ./data
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{Level: "warn", Format: "text"}); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	var err error
	switch os.Args[1] {
	case "analyze":
		err = runAnalyze(os.Args[2:])
	case "ask":
		err = runAsk(os.Args[2:])
	case "-h", "--help", "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "未知命令: %s\n\n%s", os.Args[1], usage)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func runAnalyze(args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	week1 := fs.String("week1", "", "第一周数据 JSON 文件路径")
	week2 := fs.String("week2", "", "第二周数据 JSON 文件路径")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *week1 == "" || *week2 == "" {
		return fmt.Errorf("必须同时提供 --week1 与 --week2")
	}
	if _, err := os.Stat(*week1); err != nil {
		return fmt.Errorf("第一周数据文件不存在: %s", *week1)
	}
	if _, err := os.Stat(*week2); err != nil {
		return fmt.Errorf("第二周数据文件不存在: %s", *week2)
	}

	client, err := buildLLMClient()
	if err != nil {
		return err
	}
	ag, err := buildAgent(client)
	if err != nil {
		return err
	}

	result, err := ag.Execute(context.Background(), agent.AnalysisRequest{
		Week1Path: *week1,
		Week2Path: *week2,
	})
	if err != nil {
		return err
	}

	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("POWER ANALYSIS RESULTS")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println()
	fmt.Println(result.Narrative)
	return nil
}

func runAsk(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("用法: powerpulse ask <query...>")
	}
	query := strings.Join(args, " ")

	client, err := buildLLMClient()
	if err != nil {
		return err
	}
	ag, err := buildAgent(client)
	if err != nil {
		return err
	}
	router := supervisor.NewRouter(client, ag)

	result, err := router.Handle(context.Background(), query)
	if err != nil {
		return err
	}

	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("SUPERVISOR RESPONSE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println()
	fmt.Println(result)
	return nil
}

func buildAgent(client llm.Client) (*agent.Agent, error) {
	dataDir := os.Getenv("POWERPULSE_DATA")
	if dataDir == "" {
		dataDir = "data"
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	repo, err := mysql.NewMemoryAnalysisRepository(dataDir)
	if err != nil {
		return nil, err
	}
	return agent.New(client, repo, agent.WithLLMTimeout(2*time.Minute)), nil
}

// buildLLMClient 默认构造 OpenAI 客户端，缺少密钥时直接报错。
// 离线摘要客户端只在 POWERPULSE_LLM=static 显式指定时启用。
func buildLLMClient() (llm.Client, error) {
	if strings.EqualFold(strings.TrimSpace(os.Getenv("POWERPULSE_LLM")), "static") {
		return static.NewClient(), nil
	}
	return openai.NewClient(openai.Config{APIKey: strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))})
}
