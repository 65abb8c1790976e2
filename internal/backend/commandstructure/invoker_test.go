package commandstructure

import (
	"errors"
	"testing"
)

func TestCommandInvoker_EmptyCommandList(t *testing.T) {
	invoker := NewCommandInvoker([]Command{})
	testData := []byte("test data")
	result, err := invoker.Execute(testData)
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if string(result) != string(testData) {
		t.Error("Expected result to match input for empty command list")
	}
}

func TestCommandInvoker_InvalidImageData(t *testing.T) {
	// Create a mock command that returns an error
	testCmd := newMockCommandWithError("TestCommand", errors.New("invalid image data"))

	invoker := NewCommandInvoker([]Command{testCmd})
	_, err := invoker.Execute([]byte("invalid image data"))
	if err == nil {
		t.Error("Expected error for invalid image data")
	}
}

func TestCommandInvoker_MultipleCommands(t *testing.T) {
	// Create mock commands that modify the data
	cmd1 := &mockCommand{
		name: "Command1",
		executeFunc: func(data []byte) ([]byte, error) {
			return append(data, []byte("-cmd1")...), nil
		},
	}
	cmd2 := &mockCommand{
		name: "Command2",
		executeFunc: func(data []byte) ([]byte, error) {
			return append(data, []byte("-cmd2")...), nil
		},
	}

	invoker := NewCommandInvoker([]Command{cmd1, cmd2})
	result, err := invoker.Execute([]byte("start"))
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	expected := "start-cmd1-cmd2"
	if string(result) != expected {
		t.Errorf("Expected '%s', got '%s'", expected, string(result))
	}
}

func TestCommandInvoker_ErrorInMiddle(t *testing.T) {
	// Create commands where the second one fails
	cmd3Called := false
	cmd1 := newMockCommand("Command1")
	cmd2 := newMockCommandWithError("Command2", errors.New("command2 failed"))
	cmd3 := &mockCommand{
		name: "Command3",
		executeFunc: func(data []byte) ([]byte, error) {
			cmd3Called = true
			return data, nil
		},
	}

	invoker := NewCommandInvoker([]Command{cmd1, cmd2, cmd3})
	_, err := invoker.Execute([]byte("test"))
	if err == nil {
		t.Fatal("Expected error when command fails")
	}
	if cmd3Called {
		t.Error("Expected pipeline to stop after the failing command")
	}
}

func TestNewCommandInvokerFromConfigs(t *testing.T) {
	registry := NewCommandRegistry()
	err := registry.Register("TestCommand", func(params map[string]any) (Command, error) {
		if err := ValidateRequiredParams(params, []string{"required_param"}); err != nil {
			return nil, err
		}
		return newMockCommand("TestCommand"), nil
	})
	if err != nil {
		t.Fatalf("Failed to register test command: %v", err)
	}

	tests := []struct {
		name    string
		configs []CommandConfig
		wantLen int
		wantErr bool
	}{
		{"no commands", nil, 0, false},
		{"valid command", []CommandConfig{{Name: "TestCommand", Params: map[string]any{"required_param": 1}}}, 1, false},
		{"missing parameter", []CommandConfig{{Name: "TestCommand", Params: map[string]any{}}}, 0, true},
		{"unknown command", []CommandConfig{{Name: "UnknownCommand"}}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			invoker, err := NewCommandInvokerFromConfigs(registry, tt.configs)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewCommandInvokerFromConfigs error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && invoker.Len() != tt.wantLen {
				t.Errorf("Expected %d commands, got %d", tt.wantLen, invoker.Len())
			}
		})
	}
}
